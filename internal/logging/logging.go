// Package logging constructs the shared leveled logger.
//
// Reconciler and update-checker failures are logged here rather than
// surfaced: neither is allowed to block or fail startup.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/cadmod-labs/cadmod/internal/branding"
)

var (
	mu     sync.Mutex
	logger *log.Logger
)

// Default returns the process-wide logger, creating it on first use.
// It writes to stderr at warn level until SetVerbose raises it.
func Default() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newLogger(os.Stderr)
	}
	return logger
}

// SetVerbose lowers the level to debug (the -v flag).
func SetVerbose(verbose bool) {
	l := Default()
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.WarnLevel)
	}
}

// SetOutput redirects log output. Tests use this to capture warnings.
func SetOutput(w io.Writer) {
	l := Default()
	mu.Lock()
	defer mu.Unlock()
	l.SetOutput(w)
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          branding.CLIName(),
		Level:           log.WarnLevel,
		ReportTimestamp: false,
	})
}

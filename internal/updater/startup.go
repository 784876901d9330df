package updater

import (
	"fmt"
	"io"
	"time"

	"github.com/cadmod-labs/cadmod/internal/branding"
	"github.com/cadmod-labs/cadmod/internal/logging"
)

// CheckAndPrintBanner prints an update banner from the cached check result
// if one applies. It never blocks application readiness: a stale cache is
// refreshed by a background goroutine for the next invocation, and every
// failure is logged and swallowed.
func (u *Updater) CheckAndPrintBanner(w io.Writer, configDir string) {
	cache, err := LoadCache(configDir)
	if err != nil {
		logging.Default().Debug("ignoring unreadable version cache", "err", err)
		cache = nil
	}

	if cache != nil && cache.HostVersion == u.hostVersion {
		switch State(cache.State) {
		case StateUpdateAvailable:
			PrintUpdateBanner(w, cache.HostVersion, cache.LatestVersion)
		case StateIncompatibleHost:
			fmt.Fprintf(w, "\nVersion %s is out but requires host %s or newer.\n\n",
				cache.LatestVersion, cache.RequiredHostVersion)
		}
	}

	if IsCacheStale(cache, DefaultCacheMaxAge) {
		go u.refreshCache(configDir)
	}
}

// PrintUpdateBanner prints the update notification to w.
func PrintUpdateBanner(w io.Writer, current, latest string) {
	fmt.Fprintf(w, "\nUpdate available: %s -> %s\n", current, latest)
	fmt.Fprintf(w, "    Run `%s update` for details\n\n", branding.CLIName())
}

// refreshCache performs a real check and stores the result. Runs in a
// background goroutine and never fails loudly.
func (u *Updater) refreshCache(configDir string) {
	status := u.Check()
	if status.State == StateCheckFailed {
		logging.Default().Debug("background update check failed", "reason", status.Reason)
		return
	}

	cache := &VersionCache{
		State:               string(status.State),
		LatestVersion:       status.LatestVersion,
		HostVersion:         u.hostVersion,
		RequiredHostVersion: status.RequiredHostVersion,
		CheckedAt:           time.Now(),
	}
	if err := SaveCache(configDir, cache); err != nil {
		logging.Default().Debug("could not save version cache", "err", err)
	}
}

// Package host is the contract the CAD application's UI and menu layer
// consumes. Modules are polymorphic over a fixed capability set
// (initialize, shutdown, list commands) and are constructed through
// factories registered by identifier, never by runtime reflection. The
// loader exposes the active module summaries and the command registry, and
// notifies observers after discovery, initialize, and shutdown phases.
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/cadmod-labs/cadmod/internal/logging"
	"github.com/cadmod-labs/cadmod/internal/registry"
)

// Command is one menu-facing command a module contributes.
type Command struct {
	ID    string
	Title string
	Run   func(ctx context.Context) error
}

// Module is the capability set every loadable module implements.
type Module interface {
	// Initialize prepares the module for use. Called once, after the
	// startup reconciler has finished.
	Initialize(ctx context.Context) error

	// Shutdown releases the module's resources. Called once on unload.
	Shutdown(ctx context.Context) error

	// Commands returns the commands the module contributes to the menu.
	Commands() []Command
}

// Factory constructs a module instance for one registry record.
type Factory func(rec registry.Record) (Module, error)

// Summary is what the menu layer needs to display a loaded module.
type Summary struct {
	ID      string
	Name    string
	Version string
}

// ChangeFunc observes module set changes. Phase is "discover",
// "initialize", or "shutdown".
type ChangeFunc func(phase string)

// Loader instantiates and drives modules for the active registry records.
type Loader struct {
	mu        sync.RWMutex
	factories map[string]Factory
	loaded    []loadedModule
	observers []ChangeFunc
	log       *log.Logger
}

type loadedModule struct {
	summary Summary
	module  Module
}

// NewLoader creates an empty Loader.
func NewLoader() *Loader {
	return &Loader{
		factories: make(map[string]Factory),
		log:       logging.Default(),
	}
}

// RegisterFactory registers the constructor for a module identifier.
// Registering twice for the same identifier is an error.
func (l *Loader) RegisterFactory(id string, f Factory) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.factories[id]; ok {
		return fmt.Errorf("factory for %s already registered", id)
	}
	l.factories[id] = f
	return nil
}

// OnModulesChanged registers a notification callback. Callbacks run after
// discovery, initialize, and shutdown phases complete.
func (l *Loader) OnModulesChanged(fn ChangeFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Start instantiates and initializes a module for every active registry
// record with a registered factory, in registry order. A record without a
// factory is logged and skipped; a failing Initialize skips that module
// without aborting the rest.
func (l *Loader) Start(ctx context.Context, reg *registry.Registry) error {
	active := reg.Active()

	l.mu.Lock()
	l.loaded = l.loaded[:0]
	for _, rec := range active {
		factory, ok := l.factories[rec.ID]
		if !ok {
			l.log.Debug("no factory for installed module", "module", rec.ID)
			continue
		}
		mod, err := factory(rec)
		if err != nil {
			l.log.Warn("module construction failed", "module", rec.ID, "err", err)
			continue
		}
		l.loaded = append(l.loaded, loadedModule{
			summary: Summary{ID: rec.ID, Version: rec.Version, Name: rec.ID},
			module:  mod,
		})
	}
	l.mu.Unlock()
	l.notify("discover")

	l.mu.Lock()
	kept := l.loaded[:0]
	for _, lm := range l.loaded {
		if err := lm.module.Initialize(ctx); err != nil {
			l.log.Warn("module initialize failed", "module", lm.summary.ID, "err", err)
			continue
		}
		kept = append(kept, lm)
	}
	l.loaded = kept
	l.mu.Unlock()
	l.notify("initialize")

	return nil
}

// Stop shuts down every loaded module in reverse load order.
func (l *Loader) Stop(ctx context.Context) {
	l.mu.Lock()
	mods := append([]loadedModule(nil), l.loaded...)
	l.loaded = nil
	l.mu.Unlock()

	for i := len(mods) - 1; i >= 0; i-- {
		if err := mods[i].module.Shutdown(ctx); err != nil {
			l.log.Warn("module shutdown failed", "module", mods[i].summary.ID, "err", err)
		}
	}
	l.notify("shutdown")
}

// ActiveModules returns summaries of the loaded modules in load order.
func (l *Loader) ActiveModules() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Summary, 0, len(l.loaded))
	for _, lm := range l.loaded {
		out = append(out, lm.summary)
	}
	return out
}

// AllCommands returns every command contributed by loaded modules, in load
// order, for menu generation.
func (l *Loader) AllCommands() []Command {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Command
	for _, lm := range l.loaded {
		out = append(out, lm.module.Commands()...)
	}
	return out
}

// CommandCount returns the number of available commands.
func (l *Loader) CommandCount() int {
	return len(l.AllCommands())
}

func (l *Loader) notify(phase string) {
	l.mu.RLock()
	obs := append([]ChangeFunc(nil), l.observers...)
	l.mu.RUnlock()
	for _, fn := range obs {
		fn(phase)
	}
}

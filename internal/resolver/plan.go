package resolver

import (
	"fmt"
	"io"

	"github.com/cadmod-labs/cadmod/internal/catalog"
)

// Action is what a plan step does to one module.
type Action string

const (
	ActionInstall Action = "install"
	ActionUpgrade Action = "upgrade"
	ActionSkip    Action = "skip"
	ActionRemove  Action = "remove"
)

// Step is one ordered entry of a resolution plan. For Install and Upgrade
// the selected catalog descriptor is attached for the installer.
type Step struct {
	ID         string
	Version    string
	Action     Action
	Descriptor *catalog.ModuleDescriptor
}

// Plan is an ordered action sequence. Install/Upgrade steps list
// dependencies before their dependents; Remove steps list dependents before
// their dependencies.
type Plan struct {
	Steps []Step
}

// Work returns the steps that touch the filesystem (everything but Skip).
func (p *Plan) Work() []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Action != ActionSkip {
			out = append(out, s)
		}
	}
	return out
}

// Print writes a human-readable plan summary.
func (p *Plan) Print(w io.Writer) {
	for _, s := range p.Steps {
		switch s.Action {
		case ActionSkip:
			fmt.Fprintf(w, "  - %s %s (already installed)\n", s.ID, s.Version)
		case ActionUpgrade:
			fmt.Fprintf(w, "  ^ %s -> %s\n", s.ID, s.Version)
		case ActionRemove:
			fmt.Fprintf(w, "  x %s %s\n", s.ID, s.Version)
		default:
			fmt.Fprintf(w, "  + %s %s\n", s.ID, s.Version)
		}
	}
}

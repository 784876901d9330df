package installer

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cadmod-labs/cadmod/internal/catalog"
	"github.com/cadmod-labs/cadmod/internal/logging"
	"github.com/cadmod-labs/cadmod/internal/platform"
	"github.com/cadmod-labs/cadmod/internal/registry"
	"github.com/cadmod-labs/cadmod/internal/resolver"
)

const downloadTimeout = 5 * time.Minute

// ProgressFunc is called after each attempted step with its outcome.
type ProgressFunc func(step resolver.Step, err error)

// Installer applies resolution plans against one modules root and registry.
type Installer struct {
	reg         *registry.Registry
	modulesRoot string
	httpClient  *http.Client
	progress    ProgressFunc
	log         *log.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(i *Installer) { i.httpClient = c }
}

// WithProgress sets the per-step progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(i *Installer) { i.progress = fn }
}

// New creates an Installer writing under modulesRoot.
func New(reg *registry.Registry, modulesRoot string, opts ...Option) *Installer {
	i := &Installer{
		reg:         reg,
		modulesRoot: modulesRoot,
		httpClient:  &http.Client{Timeout: downloadTimeout},
		log:         logging.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Apply executes the plan's steps in order under the registry's single
// mutation guard. The first failing step stops the pass; earlier steps stay
// applied and the report says exactly what happened. Cancellation is only
// honored between steps: file placement is the smallest unit of work.
func (i *Installer) Apply(ctx context.Context, plan *resolver.Plan) *Report {
	i.reg.BeginMutation()
	defer i.reg.EndMutation()

	report := &Report{}
	failed := false

	for _, step := range plan.Steps {
		if step.Action == resolver.ActionSkip {
			report.Skipped = append(report.Skipped, step.ID)
			continue
		}

		if failed {
			report.NotAttempted = append(report.NotAttempted, step.ID)
			continue
		}
		if err := ctx.Err(); err != nil {
			report.FailedID = step.ID
			report.FailedErr = err
			failed = true
			continue
		}

		var err error
		switch step.Action {
		case resolver.ActionRemove:
			_, err = i.stage(step.ID)
		default:
			err = i.installStep(ctx, step)
		}

		if i.progress != nil {
			i.progress(step, err)
		}
		if err != nil {
			report.FailedID = step.ID
			report.FailedErr = err
			failed = true
			continue
		}
		report.Applied = append(report.Applied, step.ID)
	}

	return report
}

// installStep downloads, verifies, and places one module, then records it.
// Order matters: files land on disk before the registry write, so the
// registry never claims files that do not exist.
func (i *Installer) installStep(ctx context.Context, step resolver.Step) error {
	desc := step.Descriptor
	if desc == nil {
		return fmt.Errorf("step %s has no catalog descriptor", step.ID)
	}

	workDir, err := os.MkdirTemp("", "cadmod-install-*")
	if err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	archive, err := i.fetchArtifact(ctx, desc, workDir)
	if err != nil {
		return err
	}
	if err := verifyChecksum(archive, desc.SHA256); err != nil {
		return err
	}

	extractDir := filepath.Join(workDir, "extracted")
	if err := extractArchive(archive, extractDir); err != nil {
		return err
	}
	if err := verifyManifest(desc, extractDir); err != nil {
		return err
	}

	// Upgrades first clear files of the previous version that the new
	// manifest no longer lists. Best effort; a locked leftover is logged
	// and stays until a later reconcile pass.
	if step.Action == resolver.ActionUpgrade {
		i.removeStaleFiles(step.ID, desc)
	}

	for _, rel := range desc.Files {
		src := filepath.Join(extractDir, filepath.FromSlash(rel))
		dst := filepath.Join(i.modulesRoot, filepath.FromSlash(rel))
		if err := platform.MoveFile(src, dst); err != nil {
			return fmt.Errorf("placing %s: %w", rel, err)
		}
	}

	requires := make([]string, 0, len(desc.Requires))
	for _, dep := range desc.Requires {
		requires = append(requires, dep.ID)
	}

	rec := registry.Record{
		ID:          desc.ID,
		Version:     desc.Version,
		Files:       append([]string(nil), desc.Files...),
		Requires:    requires,
		InstalledAt: time.Now().UTC(),
		Source:      desc.Source,
	}
	if err := i.reg.Put(rec); err != nil {
		return fmt.Errorf("recording %s: %w", desc.ID, err)
	}
	return nil
}

// removeStaleFiles deletes previous-version files absent from the new
// manifest.
func (i *Installer) removeStaleFiles(id string, desc *catalog.ModuleDescriptor) {
	old, ok := i.reg.Get(id)
	if !ok {
		return
	}
	keep := make(map[string]bool, len(desc.Files))
	for _, f := range desc.Files {
		keep[f] = true
	}
	for _, f := range old.Files {
		if keep[f] {
			continue
		}
		p := filepath.Join(i.modulesRoot, filepath.FromSlash(f))
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			i.log.Warn("could not remove stale file", "module", id, "file", f, "err", err)
		}
	}
}

// Package reconcile runs once per process start, before any module is
// loaded. It finalizes staged removals, drops registry records whose files
// vanished, and registers on-disk module bundles the registry does not know
// about. Every step is individually best-effort: a failure is logged and
// deferred, never surfaced, because startup must not be blocked.
package reconcile

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"go.yaml.in/yaml/v3"

	"github.com/cadmod-labs/cadmod/internal/logging"
	"github.com/cadmod-labs/cadmod/internal/platform"
	"github.com/cadmod-labs/cadmod/internal/registry"
)

// BundleManifest is the embedded manifest a module bundle may carry,
// used to register bundles the registry has no record of.
const BundleManifest = "module.yaml"

// legacyPrefix is the historical bundle directory naming convention.
// Bundles found under it are re-registered under the bare identifier.
const legacyPrefix = "plugin-"

// Summary reports what one reconcile pass did. A second pass with no
// intervening state change reports all-empty.
type Summary struct {
	Finalized  []string // pending removals fully deleted and dropped
	Deferred   []string // pending removals left for the next startup
	Dropped    []string // drifted records removed from the registry
	Discovered []string // unregistered bundles registered from manifests
	Migrated   []string // legacy-named bundles re-registered
}

// Empty reports a no-op pass.
func (s *Summary) Empty() bool {
	return len(s.Finalized) == 0 && len(s.Deferred) == 0 &&
		len(s.Dropped) == 0 && len(s.Discovered) == 0 && len(s.Migrated) == 0
}

// Reconciler repairs one registry against one modules root.
type Reconciler struct {
	reg         *registry.Registry
	modulesRoot string
	log         *log.Logger
}

// New creates a Reconciler.
func New(reg *registry.Registry, modulesRoot string) *Reconciler {
	return &Reconciler{
		reg:         reg,
		modulesRoot: modulesRoot,
		log:         logging.Default(),
	}
}

// Run executes one full pass. It is idempotent and has no timeout; callers
// invoke it before module discovery begins.
func (r *Reconciler) Run() *Summary {
	r.reg.BeginMutation()
	defer r.reg.EndMutation()

	s := &Summary{}
	r.finalizeRemovals(s)
	r.repairDrift(s)
	r.discoverBundles(s)
	return s
}

// finalizeRemovals deletes staged files. A module whose every staged file
// is gone loses its record and pending entry; any still-locked file defers
// the whole entry to the next startup.
func (r *Reconciler) finalizeRemovals(s *Summary) {
	for _, entry := range r.reg.PendingRemovals() {
		blocked := false
		for _, rel := range entry.Trashed {
			abs := filepath.Join(r.modulesRoot, filepath.FromSlash(rel))
			if err := platform.DeleteTrashed(abs); err != nil {
				r.log.Warn("staged file still locked, deferring removal",
					"module", entry.ID, "file", rel, "err", err)
				blocked = true
			}
		}
		if blocked {
			s.Deferred = append(s.Deferred, entry.ID)
			continue
		}

		if err := r.reg.Drop(entry.ID); err != nil {
			r.log.Warn("could not drop finalized record", "module", entry.ID, "err", err)
			s.Deferred = append(s.Deferred, entry.ID)
			continue
		}
		for _, rel := range entry.Trashed {
			platform.PruneEmptyDirs(filepath.Dir(filepath.Join(r.modulesRoot, filepath.FromSlash(rel))), r.modulesRoot)
		}
		s.Finalized = append(s.Finalized, entry.ID)
	}
}

// repairDrift drops records whose files are all gone from disk, e.g. after
// a manual delete by the user.
func (r *Reconciler) repairDrift(s *Summary) {
	for _, rec := range r.reg.Active() {
		if len(rec.Files) == 0 {
			continue
		}
		present := false
		for _, rel := range rec.Files {
			if _, err := os.Stat(filepath.Join(r.modulesRoot, filepath.FromSlash(rel))); err == nil {
				present = true
				break
			}
		}
		if present {
			continue
		}

		r.log.Warn("module files missing from disk, dropping record", "module", rec.ID, "version", rec.Version)
		if err := r.reg.Drop(rec.ID); err != nil {
			r.log.Warn("could not drop drifted record", "module", rec.ID, "err", err)
			continue
		}
		s.Dropped = append(s.Dropped, rec.ID)
	}
}

// discoverBundles registers on-disk bundles the registry does not know,
// using their embedded manifest. Bundles under the legacy directory prefix
// are first renamed to the bare identifier, then registered.
func (r *Reconciler) discoverBundles(s *Summary) {
	entries, err := os.ReadDir(r.modulesRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn("could not scan modules root", "err", err)
		}
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirName := entry.Name()
		id := dirName
		migrated := false

		if strings.HasPrefix(dirName, legacyPrefix) {
			id = strings.TrimPrefix(dirName, legacyPrefix)
			if err := r.migrateLegacyDir(dirName, id); err != nil {
				r.log.Warn("could not migrate legacy bundle", "dir", dirName, "err", err)
				continue
			}
			migrated = true
		}

		if _, ok := r.reg.Get(id); ok {
			continue
		}

		manifestPath := filepath.Join(r.modulesRoot, id, BundleManifest)
		if _, err := os.Stat(manifestPath); err != nil {
			// Not a module bundle; leave it alone.
			continue
		}

		rec, err := r.recordFromBundle(id)
		if err != nil {
			r.log.Warn("could not register discovered bundle", "module", id, "err", err)
			continue
		}
		if err := r.reg.Put(rec); err != nil {
			r.log.Warn("could not persist discovered bundle", "module", id, "err", err)
			continue
		}
		if migrated {
			s.Migrated = append(s.Migrated, id)
		} else {
			s.Discovered = append(s.Discovered, id)
		}
	}
}

// migrateLegacyDir renames plugin-<id>/ to <id>/. If the target already
// exists the legacy directory is left for manual cleanup.
func (r *Reconciler) migrateLegacyDir(oldName, id string) error {
	oldPath := filepath.Join(r.modulesRoot, oldName)
	newPath := filepath.Join(r.modulesRoot, id)
	if _, err := os.Stat(newPath); err == nil {
		return os.ErrExist
	}
	return os.Rename(oldPath, newPath)
}

// bundleManifest is the subset of the embedded manifest used for
// registration. Unknown fields are ignored.
type bundleManifest struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version"`
	Requires []string `yaml:"requires"`
}

// recordFromBundle builds a registry record from a bundle directory,
// reading the embedded manifest and walking the directory for files.
func (r *Reconciler) recordFromBundle(id string) (registry.Record, error) {
	bundleDir := filepath.Join(r.modulesRoot, id)

	data, err := os.ReadFile(filepath.Join(bundleDir, BundleManifest))
	if err != nil {
		return registry.Record{}, err
	}
	var m bundleManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return registry.Record{}, err
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}

	var files []string
	err = filepath.WalkDir(bundleDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(r.modulesRoot, path)
		if relErr != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return registry.Record{}, err
	}

	return registry.Record{
		ID:       id,
		Version:  m.Version,
		Files:    files,
		Requires: m.Requires,
		Source:   "discovered",
	}, nil
}

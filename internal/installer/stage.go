package installer

import (
	"path/filepath"

	"github.com/cadmod-labs/cadmod/internal/platform"
	"github.com/cadmod-labs/cadmod/internal/registry"
	"github.com/cadmod-labs/cadmod/internal/resolver"
)

// Stage stages one module for removal outside of plan application, holding
// the mutation guard for the single step. Callers must have validated the
// removal with resolver.ResolveRemoval first.
func (i *Installer) Stage(id string) (*registry.PendingRemoval, error) {
	i.reg.BeginMutation()
	defer i.reg.EndMutation()
	return i.stage(id)
}

// stage renames every file of the module in place to its trashed form and
// persists the pending-removal entry. The host process may hold the files
// open; rename succeeds regardless on the targeted platforms, so no delete
// is attempted here. From the registry write onward the module is absent
// from all active reads.
func (i *Installer) stage(id string) (*registry.PendingRemoval, error) {
	rec, ok := i.reg.Get(id)
	if !ok || rec.PendingRemoval {
		return nil, &resolver.NotInstalledError{ID: id}
	}

	trashed := make([]string, 0, len(rec.Files))
	for _, rel := range rec.Files {
		abs := filepath.Join(i.modulesRoot, filepath.FromSlash(rel))
		if _, err := platform.TrashRename(abs); err != nil {
			// Keep the original path on the deletion list; the reconciler
			// deletes whatever is there once the lock is gone.
			i.log.Warn("could not stage file, deferring to next startup",
				"module", id, "file", rel, "err", err)
			trashed = append(trashed, rel)
			continue
		}
		trashed = append(trashed, rel+platform.TrashSuffix)
	}

	if err := i.reg.StageRemoval(id, trashed); err != nil {
		return nil, err
	}

	entry := registry.PendingRemoval{ID: id, Trashed: trashed}
	if pending := i.reg.PendingRemovals(); len(pending) > 0 {
		for _, p := range pending {
			if p.ID == id {
				entry = p
				break
			}
		}
	}
	return &entry, nil
}

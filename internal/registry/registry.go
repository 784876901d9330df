package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Registry is the in-memory view of the registry file. Reads take a shared
// lock; single-record mutations take an exclusive lock and persist before
// returning. Plan application additionally holds the mutation guard so two
// plans never interleave writes.
type Registry struct {
	mu      sync.RWMutex
	applyMu sync.Mutex

	path    string
	modules map[string]Record
	pending map[string]PendingRemoval
}

// Open loads the registry file at path. A missing file yields an empty
// registry; a malformed file is an error.
func Open(path string) (*Registry, error) {
	r := &Registry{
		path:    path,
		modules: make(map[string]Record),
		pending: make(map[string]PendingRemoval),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	if ff.Modules != nil {
		r.modules = ff.Modules
	}
	if ff.Pending != nil {
		r.pending = ff.Pending
	}
	return r, nil
}

// Path returns the backing file path.
func (r *Registry) Path() string { return r.path }

// BeginMutation acquires the single-writer guard for a plan-application
// pass. Readers are not blocked; a second mutating pass is.
func (r *Registry) BeginMutation() { r.applyMu.Lock() }

// EndMutation releases the guard taken by BeginMutation.
func (r *Registry) EndMutation() { r.applyMu.Unlock() }

// Get returns the record for an identifier, staged-for-removal ones included.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.modules[id]
	return rec, ok
}

// Records returns every record sorted by identifier.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.modules))
	for _, rec := range r.modules {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns the records usable right now: everything not staged for
// removal, sorted by identifier.
func (r *Registry) Active() []Record {
	all := r.Records()
	out := all[:0]
	for _, rec := range all {
		if !rec.PendingRemoval {
			out = append(out, rec)
		}
	}
	return out
}

// IsActive reports whether the identifier is installed and not staged for
// removal.
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.modules[id]
	return ok && !rec.PendingRemoval
}

// Put inserts or replaces a record and persists the registry.
func (r *Registry) Put(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = time.Now().UTC()
	}
	r.modules[rec.ID] = rec
	return r.persistLocked()
}

// Drop removes a record (and any pending entry for it) and persists.
func (r *Registry) Drop(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, id)
	delete(r.pending, id)
	return r.persistLocked()
}

// StageRemoval flags the record and stores the pending entry in a single
// durable write. From this point the module is absent from Active reads.
func (r *Registry) StageRemoval(id string, trashed []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.modules[id]
	if !ok {
		return fmt.Errorf("module %s not in registry", id)
	}
	rec.PendingRemoval = true
	r.modules[id] = rec
	r.pending[id] = PendingRemoval{
		ID:       id,
		Trashed:  trashed,
		StagedAt: time.Now().UTC(),
	}
	return r.persistLocked()
}

// PendingRemovals returns the staged entries sorted by identifier.
func (r *Registry) PendingRemovals() []PendingRemoval {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PendingRemoval, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Save persists the current state. Mutating methods persist themselves;
// this exists for explicit shutdown flushes.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistLocked()
}

// persistLocked writes the registry file via a temp-file rename so a crash
// mid-write never leaves a truncated registry. Callers hold r.mu.
func (r *Registry) persistLocked() error {
	ff := fileFormat{
		SchemaVersion: SchemaVersion,
		Modules:       r.modules,
		Pending:       r.pending,
	}

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("creating registry temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing registry temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}

package registry

import "time"

// SchemaVersion is the current registry file format version.
const SchemaVersion = 1

// Record is the persisted state of one installed module. File paths are
// relative to the modules root. Unknown fields in the file are ignored on
// load so older binaries can read newer registries.
type Record struct {
	ID             string    `json:"id"`
	Version        string    `json:"version"`
	Files          []string  `json:"files"`
	Requires       []string  `json:"requires,omitempty"`
	InstalledAt    time.Time `json:"installed_at"`
	Source         string    `json:"source"`
	PendingRemoval bool      `json:"pending_removal,omitempty"`
}

// PendingRemoval is a staged deletion: the module's files have been renamed
// to their trashed form and wait for the next startup to be finalized.
type PendingRemoval struct {
	ID       string    `json:"id"`
	Trashed  []string  `json:"trashed"`
	StagedAt time.Time `json:"staged_at"`
}

// fileFormat is the on-disk JSON layout. Map keys marshal in sorted order,
// which keeps load/save round trips byte-identical.
type fileFormat struct {
	SchemaVersion int                       `json:"schema_version"`
	Modules       map[string]Record         `json:"modules"`
	Pending       map[string]PendingRemoval `json:"pending_removals"`
}

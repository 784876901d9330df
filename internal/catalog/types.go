package catalog

import "fmt"

// StandardSourceName is the source name given to the built-in remote catalog.
const StandardSourceName = "standard"

// Source is one location a catalog document is fetched from.
type Source struct {
	Name     string // "standard" or the custom source's name
	Location string // http(s) URL or local file path
	Custom   bool   // true for user-configured sources
}

// Dependency declares a requirement on another module.
// MinVersion uses minimum-version semantics ("1.2.0" means ">= 1.2.0");
// full semver range expressions are also accepted.
type Dependency struct {
	ID         string `yaml:"id" json:"id"`
	MinVersion string `yaml:"min_version,omitempty" json:"min_version,omitempty"`
}

// ModuleDescriptor describes one installable module version. Descriptors are
// immutable once fetched; a catalog snapshot may carry several versions of
// the same identifier.
type ModuleDescriptor struct {
	ID             string       `yaml:"id" json:"id"`
	Name           string       `yaml:"name" json:"name"`
	Version        string       `yaml:"version" json:"version"`
	Category       string       `yaml:"category,omitempty" json:"category,omitempty"`
	Requires       []Dependency `yaml:"requires,omitempty" json:"requires,omitempty"`
	DownloadURL    string       `yaml:"download_url" json:"download_url"`
	Files          []string     `yaml:"files" json:"files"`
	MinHostVersion string       `yaml:"min_host_version,omitempty" json:"min_host_version,omitempty"`
	SHA256         string       `yaml:"sha256,omitempty" json:"sha256,omitempty"`

	// Set during fetch, not part of the document.
	Source string `yaml:"-" json:"-"`
	Custom bool   `yaml:"-" json:"-"`
}

// Document is the wire format of one catalog source.
type Document struct {
	SchemaVersion int                `yaml:"schema_version" json:"schema_version"`
	Modules       []ModuleDescriptor `yaml:"modules" json:"modules"`
}

// ErrorKind classifies a per-source fetch failure.
type ErrorKind string

const (
	// KindNetwork covers unreachable hosts, timeouts, and non-2xx responses.
	KindNetwork ErrorKind = "network"
	// KindParse covers malformed YAML and schema violations.
	KindParse ErrorKind = "parse"
)

// SourceError is a failure confined to one source. Other sources still
// contribute to the merged result.
type SourceError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s error: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Result is the outcome of fetching a set of sources: the merged descriptor
// list in declaration order, plus the sources that failed.
type Result struct {
	Modules  []ModuleDescriptor
	Failures []*SourceError
}

// Catalog indexes a merged snapshot for resolution.
type Catalog struct {
	modules []ModuleDescriptor
	byID    map[string][]int // identifier -> indexes into modules, catalog order
}

// New builds a Catalog from a merged descriptor list.
func New(modules []ModuleDescriptor) *Catalog {
	c := &Catalog{
		modules: modules,
		byID:    make(map[string][]int),
	}
	for i, m := range modules {
		c.byID[m.ID] = append(c.byID[m.ID], i)
	}
	return c
}

// Modules returns all descriptors in declaration order.
func (c *Catalog) Modules() []ModuleDescriptor { return c.modules }

// Versions returns every descriptor for an identifier, in declaration order.
func (c *Catalog) Versions(id string) []ModuleDescriptor {
	idx := c.byID[id]
	out := make([]ModuleDescriptor, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.modules[i])
	}
	return out
}

// Has reports whether any version of the identifier exists in the snapshot.
func (c *Catalog) Has(id string) bool {
	return len(c.byID[id]) > 0
}

// DeclarationIndex returns the position of the first descriptor for id.
// Used for deterministic tie-breaking between independent subgraphs.
func (c *Catalog) DeclarationIndex(id string) int {
	if idx, ok := c.byID[id]; ok && len(idx) > 0 {
		return idx[0]
	}
	return len(c.modules)
}

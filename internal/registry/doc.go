// Package registry persists the record of installed modules and staged
// removals in ~/.cadmod/registry.json. The registry, not a filesystem scan,
// is the source of truth for what is usable right now: every mutation is
// followed by a durable write, reads are concurrent, and modules staged for
// removal disappear from active reads immediately even though their bytes
// stay on disk until the next startup.
package registry

// Package installer executes resolution plans. Install and upgrade steps
// download the module artifact to a temporary location, verify the file
// manifest, move files into the modules root, and persist the registry
// record, in that order, one step at a time. A failing step keeps every
// earlier step applied: the registry always reflects exactly what landed on
// disk, and the report names what failed and what was never attempted.
// Removal is staged by renaming files in place, since the host process may
// hold module binaries open; deletion happens at the next startup.
package installer

// Package platform provides the low-level file operations the installer and
// reconciler build on: cross-device moves, recursive copies, and the
// trash-rename used for staged removal. Renaming a file succeeds on the
// targeted platforms even while the host process holds it open or mapped,
// whereas deleting it would fail. Staged removal depends on that.
package platform

// Package updater checks whether a newer host-application release exists.
// It queries the GitHub releases feed (or a configured mirror) once,
// compares semantic versions, and gates the answer on the release's
// minimum host version: a release the current environment cannot run is
// reported as incompatible, never as available. The check is best-effort:
// failures become a CheckFailed status, not an error, and a daily cache
// powers the non-blocking startup banner.
package updater

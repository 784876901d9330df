// Package cli wires the cobra command tree: install, uninstall, list,
// catalog, update, and version. The root command runs the startup
// reconciler before anything else and prints the cached update banner
// without blocking.
package cli

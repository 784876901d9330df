// Package catalog fetches and merges module catalog documents from the
// standard remote location and any user-configured custom sources. Each
// source is fetched once per call and validated against an embedded JSON
// schema; a failing source is reported alongside the merged result instead
// of aborting the other sources.
package catalog

// Package preflight provides readiness checks for the filesystem paths,
// binaries and backends karaoke depends on.
//
// The CLI "karaoke doctor" command runs RunAll and renders the results;
// workflow commands run the directory checks before touching the library.
// Backend checks are chosen by the configured queue driver.
package preflight

// Command karaoke drives the karaoke workflows against a library directory
// and a remote separation/alignment backend.
//
// Workflow commands (generate, realign, alignline) run in-process, hold the
// item's library lock for their duration, and record each invocation in the
// run journal. Inspection commands (runs, artifacts, doctor) read the journal
// and probe the configured backends.
package main

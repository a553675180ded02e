// Package runstore persists the orchestration run journal in SQLite.
//
// Every workflow invocation (generate, realign, alignline) opens a run row
// that records the active stage, the last status message, and the terminal
// outcome. Artifacts saved to the content library are upserted per item and
// mode so `karaoke artifacts` can report what exists for a song. The store
// retries SQLITE_BUSY with a short backoff so concurrent CLI invocations can
// share one database.
package runstore

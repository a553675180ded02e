// Package media defines the item and processing-mode vocabulary shared by the
// orchestrator, the content library, and the run journal.
//
// Modes name both the inputs requested from the library and the artifacts
// persisted back to it. Media modes cover the original mix, the separated
// stems, and their videos; caption modes cover word- and line-level
// alignments.
package media

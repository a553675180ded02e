// Package workflow is the orchestration engine. An Orchestrator sequences
// the content library, the transfer backend and the remote job queues into
// the entry workflows:
//
//   - Generate: separate the original audio into stems and align the lyrics
//     at line and word level, branching on the detected language.
//   - AlignLine: derive word-level captions from an existing line alignment.
//   - Realign: redo line or word alignment from freshly detected language.
//
// Each workflow is an explicit list of named steps. Steps launched together
// are joined with an all-complete barrier (stage.Join) before the next step
// starts. Separation failures are fatal; an alignment branch inside Generate
// that comes back without a result is skipped without failing the run.
package workflow

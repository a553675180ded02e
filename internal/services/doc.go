// Package services defines shared utilities consumed by the workflow
// orchestrator and its external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     (input, processing, transfer) so callers can decide between surfacing,
//     retrying, or silently skipping.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across workflows.
package services

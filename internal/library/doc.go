// Package library is the filesystem content library: it supplies the inputs
// a workflow consumes (lyrics, audio, video, metadata, language, existing
// alignments) and persists the artifacts workflows produce.
//
// Every item owns one directory under the library root named after its
// sanitized ID. Artifacts are stored as <mode>.<format>; the detected
// language is cached in a `language` sidecar. Derived videos for the
// separated stems are muxed on demand with ffmpeg. Writes are atomic and
// overwrite earlier versions, so re-running a workflow is safe.
package library

// Package ffprobe inspects library media files with the ffprobe binary.
//
// Probe runs ffprobe with JSON output and decodes the container and stream
// metadata. The library uses it to fill item durations and to reject imports
// that carry no usable stream.
package ffprobe

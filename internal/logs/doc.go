// Package logs reads the karaoke log file for the CLI.
//
// Tail returns the last lines of the file and the offset reached; Follow
// streams lines appended after an offset until its context ends. Both accept
// an optional Match to keep only lines that mention one item.
package logs

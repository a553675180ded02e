// Package textutil provides small text helpers for filesystem-safe names and
// human-facing truncation.
package textutil

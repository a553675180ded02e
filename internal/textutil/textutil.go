package textutil

import (
	"strings"
	"unicode/utf8"
)

// SanitizeFileName makes name safe to use as a single path element. Path
// separators, colons and asterisks become dashes; other reserved characters
// are dropped. Surrounding whitespace is trimmed.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, strings.TrimSpace(name)))
}

// Truncate shortens s to at most limit runes, ending with an ellipsis when
// cut. A non-positive limit disables truncation.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

// Ternary returns a when cond holds, b otherwise.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

package entry

import (
	"strings"
	"unicode/utf8"
)

// EllipsisMarker terminates a truncated preview.
const EllipsisMarker = "..."

// NormalizeTags trims tags, drops empty ones and removes duplicates
// (case-insensitive, first spelling wins). Order is preserved.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Truncate cuts s to at most budget runes, appending EllipsisMarker when cut.
// A non-positive budget leaves s untouched.
func Truncate(s string, budget int) string {
	if budget <= 0 || utf8.RuneCountInString(s) <= budget {
		return s
	}
	n := 0
	for i := range s {
		if n == budget {
			return s[:i] + EllipsisMarker
		}
		n++
	}
	return s
}

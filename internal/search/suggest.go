package search

import (
	"regexp"
	"slices"
	"strings"

	"github.com/hpungsan/klip/internal/entry"
)

const (
	suggestWindow       = 100
	DefaultSuggestLimit = 10
)

// wordRegex matches runs of letters, marks, digits and underscores in any script.
var wordRegex = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{3,}`)

// Suggest completes partial with words of three or more characters taken from
// the newest entries' content, previews and tags. Matching is
// case-insensitive; results are sorted and at most limit long.
func Suggest(entries []entry.Entry, partial string, limit int) []string {
	partial = strings.TrimSpace(partial)
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	prefix := strings.ToLower(partial)

	seen := make(map[string]bool)
	var out []string
	consider := func(word string) {
		lw := strings.ToLower(word)
		if len(word) <= len(partial) || !strings.HasPrefix(lw, prefix) || seen[lw] {
			return
		}
		seen[lw] = true
		out = append(out, word)
	}

	for _, e := range entries[:min(len(entries), suggestWindow)] {
		for _, w := range wordRegex.FindAllString(e.Content(), -1) {
			consider(w)
		}
		for _, w := range wordRegex.FindAllString(e.Preview, -1) {
			consider(w)
		}
		for _, tag := range e.Tags {
			consider(tag)
		}
	}

	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

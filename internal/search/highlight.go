package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

// spans locates the query matches in preview without modifying it.
func (m *matcher) spans(preview string) []Span {
	if preview == "" {
		return nil
	}
	re := m.re
	if re == nil {
		re = m.literalPattern()
	}
	if re == nil {
		return nil
	}
	var out []Span
	for _, loc := range re.FindAllStringIndex(preview, -1) {
		if loc[0] == loc[1] {
			continue
		}
		out = append(out, Span{Start: loc[0], End: loc[1]})
	}
	return mergeSpans(out)
}

// literalPattern matches any query token, longest first. In regex mode with
// an invalid pattern it matches the whole query literally.
func (m *matcher) literalPattern() *regexp.Regexp {
	parts := m.tokens
	if m.regex {
		parts = []string{m.query}
	}
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		quoted = append(quoted, regexp.QuoteMeta(p))
	}
	slices.SortStableFunc(quoted, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	pattern := strings.Join(quoted, "|")
	if m.fold {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

// mergeSpans joins overlapping or touching spans. Input must be sorted by Start.
func mergeSpans(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}
	out := []Span{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			last.End = max(last.End, s.End)
			continue
		}
		out = append(out, s)
	}
	return out
}

// Mark renders preview with every span wrapped in open and close.
// Spans out of range or out of order are skipped.
func Mark(preview string, spans []Span, open, close string) string {
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		if s.Start < pos || s.End > len(preview) || s.Start >= s.End {
			continue
		}
		b.WriteString(preview[pos:s.Start])
		b.WriteString(open)
		b.WriteString(preview[s.Start:s.End])
		b.WriteString(close)
		pos = s.End
	}
	b.WriteString(preview[pos:])
	return b.String()
}

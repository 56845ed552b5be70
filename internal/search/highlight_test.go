package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hpungsan/klip/internal/entry"
)

func TestHighlights_NonDestructive(t *testing.T) {
	e := textEntry("a", "Cat and cat-like cats")

	results := Search([]entry.Entry{e}, Criteria{Query: "cat", Now: now})

	assert.Equal(t, "Cat and cat-like cats", results[0].Preview)
	assert.Equal(t, []Span{{0, 3}, {8, 11}, {17, 20}}, results[0].Highlights)
	assert.Equal(t, "**Cat** and **cat**-like **cat**s", Mark(results[0].Preview, results[0].Highlights, "**", "**"))
}

func TestHighlights_AdjacentMatchesMerge(t *testing.T) {
	e := textEntry("a", "abab")

	results := Search([]entry.Entry{e}, Criteria{Query: "ab", Now: now})

	assert.Equal(t, []Span{{0, 4}}, results[0].Highlights)
}

func TestHighlights_LongestTokenWins(t *testing.T) {
	e := textEntry("a", "category")

	results := Search([]entry.Entry{e}, Criteria{Query: "cat category", Now: now})

	assert.Equal(t, []Span{{0, 8}}, results[0].Highlights)
}

func TestHighlights_Regex(t *testing.T) {
	e := textEntry("a", "id=42 id=7")

	results := Search([]entry.Entry{e}, Criteria{Query: `id=\d+`, Regex: true, Now: now})

	assert.Equal(t, "[id=42] [id=7]", Mark(results[0].Preview, results[0].Highlights, "[", "]"))
}

func TestMark_SkipsInvalidSpans(t *testing.T) {
	got := Mark("hello", []Span{{0, 2}, {1, 3}, {4, 99}}, "<", ">")
	assert.Equal(t, "<he>llo", got)
}

package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hpungsan/klip/internal/entry"
)

func TestSuggest(t *testing.T) {
	tagged := textEntry("c", "nothing here")
	tagged.Tags = []string{"Project"}
	entries := []entry.Entry{
		textEntry("a", "program produces progress"),
		textEntry("b", "Program pro pr"),
		tagged,
	}

	got := Suggest(entries, "pro", 10)

	assert.Equal(t, []string{"produces", "program", "progress", "Project"}, got)
}

func TestSuggest_Limit(t *testing.T) {
	got := Suggest([]entry.Entry{textEntry("a", "alpha alpine alps altitude")}, "al", 2)
	assert.Equal(t, []string{"alpha", "alpine"}, got)
}

func TestSuggest_NonASCIIWords(t *testing.T) {
	entries := []entry.Entry{
		textEntry("a", "café crème naïve"),
		textEntry("b", "привет мир, Привычка"),
	}

	assert.Equal(t, []string{"café"}, Suggest(entries, "caf", 10))
	assert.Equal(t, []string{"crème"}, Suggest(entries, "crè", 10))
	assert.Equal(t, []string{"привет", "Привычка"}, Suggest(entries, "при", 10))
}

func TestSuggest_OnlyNewestWindow(t *testing.T) {
	var entries []entry.Entry
	for i := 0; i < suggestWindow; i++ {
		entries = append(entries, textEntry(fmt.Sprint(i), "filler"))
	}
	entries = append(entries, textEntry("old", "zebra"))

	assert.Empty(t, Suggest(entries, "zeb", 10))
}

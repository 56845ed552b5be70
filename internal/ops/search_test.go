package ops

import (
	"testing"

	"github.com/hpungsan/klip/internal/errors"
	"github.com/hpungsan/klip/internal/search"
)

func TestSearch_RelevanceByDefault(t *testing.T) {
	h := newTestHistory(t)
	seed(t, h,
		textEntry("c", "deploy", 1),
		textEntry("b", "deploy script for staging", 2),
		textEntry("a", "unrelated words", 3),
	)

	output, err := Search(h, SearchInput{Query: "deploy", Highlight: true})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if output.Sort != string(search.SortRelevance) {
		t.Errorf("Sort = %q, want relevance", output.Sort)
	}
	if output.Pagination.Total != 2 {
		t.Fatalf("Total = %d, want 2", output.Pagination.Total)
	}
	// Equal text scores keep history order.
	if output.Items[0].ID != "c" {
		t.Errorf("Items[0].ID = %q, want 'c'", output.Items[0].ID)
	}
	if output.Items[1].Highlighted != "**deploy** script for staging" {
		t.Errorf("Highlighted = %q", output.Items[1].Highlighted)
	}
}

func TestSearch_NoQuerySortsByDate(t *testing.T) {
	h := newTestHistory(t)
	seed(t, h, textEntry("new", "one", 1), textEntry("old", "two", 5))

	output, err := Search(h, SearchInput{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if output.Sort != string(search.SortDateDesc) {
		t.Errorf("Sort = %q, want date_desc", output.Sort)
	}
	if len(output.Items) != 2 || output.Items[0].ID != "new" {
		t.Errorf("Items = %+v", output.Items)
	}
}

func TestSearch_InvalidInput(t *testing.T) {
	h := newTestHistory(t)
	lo, hi := int64(10), int64(5)

	tests := []struct {
		name  string
		input SearchInput
	}{
		{"unknown sort", SearchInput{Sort: "alphabetical"}},
		{"unknown kind", SearchInput{Kind: "audio"}},
		{"inverted size", SearchInput{MinSize: &lo, MaxSize: &hi}},
		{"inverted dates", SearchInput{Since: &baseTime, Until: ptrTime(baseTime.AddDate(0, 0, -1))}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Search(h, tc.input); !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("error = %v, want INVALID_REQUEST", err)
			}
		})
	}
}

func TestSearch_InvalidRegexFallsBackToLiteral(t *testing.T) {
	h := newTestHistory(t)
	seed(t, h, textEntry("a", "price is [10", 1), textEntry("b", "nothing", 2))

	output, err := Search(h, SearchInput{Query: "[10", Regex: true})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !output.LiteralFallback {
		t.Error("LiteralFallback = false, want true")
	}
	if len(output.Items) != 1 || output.Items[0].ID != "a" {
		t.Errorf("Items = %+v, want only 'a'", output.Items)
	}
}

func TestSuggest(t *testing.T) {
	h := newTestHistory(t)
	seed(t, h, textEntry("a", "Kubernetes kubectl apply", 1), textEntry("b", "kube", 2))

	output, err := Suggest(h, SuggestInput{Partial: "kub"})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	want := []string{"kube", "kubectl", "Kubernetes"}
	if len(output.Suggestions) != len(want) {
		t.Fatalf("Suggestions = %v, want %v", output.Suggestions, want)
	}
	for i := range want {
		if output.Suggestions[i] != want[i] {
			t.Errorf("Suggestions[%d] = %q, want %q", i, output.Suggestions[i], want[i])
		}
	}

	output, err = Suggest(h, SuggestInput{Partial: "zzz"})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if output.Suggestions == nil || len(output.Suggestions) != 0 {
		t.Errorf("Suggestions = %v, want empty non-nil", output.Suggestions)
	}
}

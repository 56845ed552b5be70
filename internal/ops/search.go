package ops

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/errors"
	"github.com/hpungsan/klip/internal/search"
)

// Highlight markers used when SearchInput.Highlight is set.
const (
	HighlightOpen  = "**"
	HighlightClose = "**"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query         string
	Kind          string
	Since         *time.Time
	Until         *time.Time
	FavoritesOnly bool
	Tags          []string
	MinSize       *int64
	MaxSize       *int64
	Regex         bool
	CaseSensitive bool
	Sort          string // default: relevance with a query, date_desc without
	Highlight     bool
	Limit         int
	Offset        int
}

// SearchHit is one ranked search result.
type SearchHit struct {
	SummaryItem
	Score        float64       `json:"score"`
	MatchedTerms []string      `json:"matched_terms,omitempty"`
	Highlights   []search.Span `json:"highlights,omitempty"`
	Highlighted  string        `json:"highlighted,omitempty"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Items      []SearchHit `json:"items"`
	Pagination Pagination  `json:"pagination"`
	Sort       string      `json:"sort"`

	// LiteralFallback is set when the regex did not compile and the query matched as plain text.
	LiteralFallback bool `json:"literal_fallback,omitempty"`
}

// Search ranks the history against the input criteria.
func Search(h History, input SearchInput) (*SearchOutput, error) {
	c, err := criteria(input)
	if err != nil {
		return nil, err
	}

	results := search.Search(h.Snapshot(), c)
	pg, start, end := page(input.Limit, input.Offset, len(results))

	items := make([]SearchHit, 0, end-start)
	for _, r := range results[start:end] {
		hit := SearchHit{
			SummaryItem:  Summarize(r.Entry, c.Now),
			Score:        r.Score,
			MatchedTerms: r.MatchedTerms,
			Highlights:   r.Highlights,
		}
		if input.Highlight && len(r.Highlights) > 0 {
			hit.Highlighted = search.Mark(r.Preview, r.Highlights, HighlightOpen, HighlightClose)
		}
		items = append(items, hit)
	}

	out := &SearchOutput{
		Items:      items,
		Pagination: pg,
		Sort:       string(c.SortBy),
	}
	if c.Regex && c.Query != "" {
		if _, err := regexp.Compile(c.Query); err != nil {
			out.LiteralFallback = true
		}
	}
	return out, nil
}

func criteria(input SearchInput) (search.Criteria, error) {
	c := search.Criteria{
		Query:         input.Query,
		Since:         input.Since,
		Until:         input.Until,
		FavoritesOnly: input.FavoritesOnly,
		Tags:          entry.NormalizeTags(input.Tags),
		MinSize:       input.MinSize,
		MaxSize:       input.MaxSize,
		Regex:         input.Regex,
		CaseSensitive: input.CaseSensitive,
		Now:           time.Now(),
	}

	if input.Kind != "" {
		k, ok := entry.ParseKind(input.Kind)
		if !ok {
			return c, errors.NewInvalidRequest("unknown kind: " + input.Kind)
		}
		c.Kind = &k
	}

	switch {
	case input.Sort != "":
		o, ok := search.ParseSortOrder(input.Sort)
		if !ok {
			return c, errors.NewInvalidRequest(fmt.Sprintf("sort must be one of: %s", sortNames()))
		}
		c.SortBy = o
	case strings.TrimSpace(input.Query) != "":
		c.SortBy = search.SortRelevance
	default:
		c.SortBy = search.SortDateDesc
	}

	if c.Since != nil && c.Until != nil && c.Until.Before(*c.Since) {
		return c, errors.NewInvalidRequest("until must not be before since")
	}
	if c.MinSize != nil && c.MaxSize != nil && *c.MaxSize < *c.MinSize {
		return c, errors.NewInvalidRequest("max_size must not be below min_size")
	}
	return c, nil
}

func sortNames() string {
	names := make([]string, len(search.SortOrders))
	for i, o := range search.SortOrders {
		names[i] = string(o)
	}
	return strings.Join(names, ", ")
}

// SuggestInput contains parameters for the Suggest operation.
type SuggestInput struct {
	Partial string
	Limit   int // default: 10
}

// SuggestOutput contains the result of the Suggest operation.
type SuggestOutput struct {
	Suggestions []string `json:"suggestions"`
}

// Suggest completes a partial search term from words in recent history.
func Suggest(h History, input SuggestInput) (*SuggestOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = search.DefaultSuggestLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	out := search.Suggest(h.Snapshot(), input.Partial, limit)
	if out == nil {
		out = []string{}
	}
	return &SuggestOutput{Suggestions: out}, nil
}

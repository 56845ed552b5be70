package ops

import (
	"time"

	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/errors"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Kind          string // optional kind filter
	FavoritesOnly bool
	Limit         int // default: 20, max: 100
	Offset        int // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []SummaryItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// List returns entry summaries in history order, newest capture first.
func List(h History, input ListInput) (*ListOutput, error) {
	var kind entry.Kind
	if input.Kind != "" {
		k, ok := entry.ParseKind(input.Kind)
		if !ok {
			return nil, errors.NewInvalidRequest("unknown kind: " + input.Kind)
		}
		kind = k
	}

	snap := h.Snapshot()
	filtered := snap[:0]
	for _, e := range snap {
		if kind != "" && e.Kind != kind {
			continue
		}
		if input.FavoritesOnly && !e.Favorite {
			continue
		}
		filtered = append(filtered, e)
	}

	pg, start, end := page(input.Limit, input.Offset, len(filtered))
	now := time.Now()

	// Ensure we return an empty array rather than nil
	items := make([]SummaryItem, 0, end-start)
	for _, e := range filtered[start:end] {
		items = append(items, Summarize(e, now))
	}

	return &ListOutput{
		Items:      items,
		Pagination: pg,
		Sort:       "recent",
	}, nil
}

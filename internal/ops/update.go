package ops

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/errors"
)

// FavoriteInput contains parameters for the Favorite operation.
type FavoriteInput struct {
	ID       string
	Favorite bool
}

// Favorite sets or clears an entry's favorite flag.
func Favorite(h History, input FavoriteInput) (*SummaryItem, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if !h.SetFavorite(id, input.Favorite) {
		return nil, errors.NewNotFound(id)
	}
	return summaryOf(h, id)
}

// TagMode selects how Tag combines the given tags with the existing ones.
type TagMode string

const (
	TagModeSet    TagMode = "set"
	TagModeAdd    TagMode = "add"
	TagModeRemove TagMode = "remove"
)

// TagInput contains parameters for the Tag operation.
type TagInput struct {
	ID   string
	Tags []string
	Mode TagMode // default: set
}

// Tag replaces, extends or prunes an entry's tags.
func Tag(h History, input TagInput) (*SummaryItem, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if input.Mode == "" {
		input.Mode = TagModeSet
	}

	e, ok := h.Get(id)
	if !ok {
		return nil, errors.NewNotFound(id)
	}

	var tags []string
	switch input.Mode {
	case TagModeSet:
		tags = input.Tags
	case TagModeAdd:
		tags = append(slices.Clone(e.Tags), input.Tags...)
	case TagModeRemove:
		drop := entry.NormalizeTags(input.Tags)
		tags = slices.DeleteFunc(slices.Clone(e.Tags), func(t string) bool {
			return slices.ContainsFunc(drop, func(d string) bool { return strings.EqualFold(t, d) })
		})
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("mode must be one of: %s, %s, %s", TagModeSet, TagModeAdd, TagModeRemove))
	}

	if !h.SetTags(id, tags) {
		return nil, errors.NewNotFound(id)
	}
	return summaryOf(h, id)
}

func summaryOf(h History, id string) (*SummaryItem, error) {
	e, ok := h.Get(id)
	if !ok {
		return nil, errors.NewNotFound(id)
	}
	s := Summarize(e, time.Now())
	return &s, nil
}

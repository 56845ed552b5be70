package ops

import (
	"strings"

	"github.com/hpungsan/klip/internal/errors"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ID string
}

// Get returns the full record of one entry.
func Get(h History, input GetInput) (*Record, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	e, ok := h.Get(id)
	if !ok {
		return nil, errors.NewNotFound(id)
	}
	r := NewRecord(e)
	return &r, nil
}

package ops

import (
	"strings"

	"github.com/hpungsan/klip/internal/errors"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	IDs []string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted int      `json:"deleted"`
	Missing []string `json:"missing,omitempty"`
}

// Delete removes entries by ID. A single unknown ID is an error; in a batch,
// unknown IDs are reported and skipped.
func Delete(h History, input DeleteInput) (*DeleteOutput, error) {
	ids := make([]string, 0, len(input.IDs))
	for _, id := range input.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.NewInvalidRequest("at least one id is required")
	}

	var present, missing []string
	for _, id := range ids {
		if _, ok := h.Get(id); ok {
			present = append(present, id)
		} else {
			missing = append(missing, id)
		}
	}
	if len(ids) == 1 && len(missing) == 1 {
		return nil, errors.NewNotFound(ids[0])
	}

	// Entries deleted concurrently since the check are a no-op.
	deleted := 0
	if len(present) > 0 {
		deleted = h.RemoveMany(present)
	}
	return &DeleteOutput{Deleted: deleted, Missing: missing}, nil
}

// ClearInput contains parameters for the Clear operation.
type ClearInput struct {
	Confirm bool
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Cleared int `json:"cleared"`
}

// Clear empties the history, favorites included.
func Clear(h History, input ClearInput) (*ClearOutput, error) {
	if !input.Confirm {
		return nil, errors.NewInvalidRequest("clear requires confirm=true")
	}
	return &ClearOutput{Cleared: h.Clear()}, nil
}

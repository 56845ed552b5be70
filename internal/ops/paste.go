package ops

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/hpungsan/klip/internal/capture"
	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/errors"
)

// PasteInput contains parameters for the Paste operation.
type PasteInput struct {
	ID string
}

// PasteOutput contains the result of the Paste operation.
type PasteOutput struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Pasted bool   `json:"pasted"`
}

// Paste puts an entry back on the clipboard and records the use.
func Paste(ctx context.Context, h History, p Paster, input PasteInput) (*PasteOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	e, ok := h.Get(id)
	if !ok {
		return nil, errors.NewNotFound(id)
	}

	pasted, err := p.Paste(ctx, id)
	if err != nil {
		return nil, pasteError(err, e.Kind, e.Asset(entry.RoleImage))
	}
	return &PasteOutput{ID: id, Kind: string(e.Kind), Pasted: pasted}, nil
}

// pasteError maps monitor failures to structured errors.
func pasteError(err error, kind entry.Kind, assetPath string) error {
	switch {
	case stderrors.Is(err, capture.ErrClipboardWrite):
		return errors.NewClipboardUnavailable(err)
	case stderrors.Is(err, capture.ErrAssetRead):
		return errors.NewAssetIO(assetPath, err)
	case stderrors.Is(err, capture.ErrUnsupportedKind):
		return errors.NewUnsupportedPayload(string(kind))
	default:
		return errors.NewInternal(err)
	}
}

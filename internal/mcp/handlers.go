package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/klip/internal/errors"
	"github.com/hpungsan/klip/internal/ops"
)

// Deps are the collaborators tool handlers act on.
type Deps struct {
	History ops.History
	Paster  ops.Paster
	Capture ops.Capture
	Sweeper ops.Sweeper

	// Paths restricts export to the exports directory.
	Paths ops.PathPolicy
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	deps.Paths.Restrict = true
	return &Handlers{deps: deps}
}

// Request types for each tool

// ListRequest represents the arguments for history_list.
type ListRequest struct {
	Kind          string `json:"kind,omitempty"`
	FavoritesOnly bool   `json:"favorites_only,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// IDRequest represents the arguments of tools addressing one entry.
type IDRequest struct {
	ID string `json:"id"`
}

// SearchRequest represents the arguments for history_search.
type SearchRequest struct {
	Query         string     `json:"query,omitempty"`
	Kind          string     `json:"kind,omitempty"`
	Since         *time.Time `json:"since,omitempty"`
	Until         *time.Time `json:"until,omitempty"`
	FavoritesOnly bool       `json:"favorites_only,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	MinSize       *int64     `json:"min_size,omitempty"`
	MaxSize       *int64     `json:"max_size,omitempty"`
	Regex         bool       `json:"regex,omitempty"`
	CaseSensitive bool       `json:"case_sensitive,omitempty"`
	Sort          string     `json:"sort,omitempty"`
	Highlight     bool       `json:"highlight,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}

// SuggestRequest represents the arguments for history_suggest.
type SuggestRequest struct {
	Partial string `json:"partial"`
	Limit   int    `json:"limit,omitempty"`
}

// DeleteRequest represents the arguments for history_delete.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// ClearRequest represents the arguments for history_clear.
type ClearRequest struct {
	Confirm bool `json:"confirm"`
}

// FavoriteRequest represents the arguments for history_favorite.
type FavoriteRequest struct {
	ID       string `json:"id"`
	Favorite *bool  `json:"favorite"`
}

// TagRequest represents the arguments for history_tag.
type TagRequest struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
	Mode string   `json:"mode,omitempty"`
}

// ExportRequest represents the arguments for history_export.
type ExportRequest struct {
	Path          string `json:"path,omitempty"`
	FavoritesOnly bool   `json:"favorites_only,omitempty"`
}

// CaptureToggleRequest represents the arguments for capture_toggle.
type CaptureToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// Handler implementations

// HandleList handles the history_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	output, err := ops.List(h.deps.History, ops.ListInput{
		Kind:          input.Kind,
		FavoritesOnly: input.FavoritesOnly,
		Limit:         input.Limit,
		Offset:        input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleGet handles the history_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	output, err := ops.Get(h.deps.History, ops.GetInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleSearch handles the history_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	output, err := ops.Search(h.deps.History, ops.SearchInput{
		Query:         input.Query,
		Kind:          input.Kind,
		Since:         input.Since,
		Until:         input.Until,
		FavoritesOnly: input.FavoritesOnly,
		Tags:          input.Tags,
		MinSize:       input.MinSize,
		MaxSize:       input.MaxSize,
		Regex:         input.Regex,
		CaseSensitive: input.CaseSensitive,
		Sort:          input.Sort,
		Highlight:     input.Highlight,
		Limit:         input.Limit,
		Offset:        input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleSuggest handles the history_suggest tool call.
func (h *Handlers) HandleSuggest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.Partial) == "" {
		return errorResult(errors.NewInvalidRequest("partial is required")), nil
	}

	output, err := ops.Suggest(h.deps.History, ops.SuggestInput{Partial: input.Partial, Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandlePaste handles the history_paste tool call.
func (h *Handlers) HandlePaste(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	output, err := ops.Paste(ctx, h.deps.History, h.deps.Paster, ops.PasteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleDelete handles the history_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	output, err := ops.Delete(h.deps.History, ops.DeleteInput{IDs: input.IDs})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleClear handles the history_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClearRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	output, err := ops.Clear(h.deps.History, ops.ClearInput{Confirm: input.Confirm})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleFavorite handles the history_favorite tool call.
func (h *Handlers) HandleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FavoriteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Favorite == nil {
		return errorResult(errors.NewInvalidRequest("favorite is required")), nil
	}

	output, err := ops.Favorite(h.deps.History, ops.FavoriteInput{ID: input.ID, Favorite: *input.Favorite})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleTag handles the history_tag tool call.
func (h *Handlers) HandleTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TagRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	output, err := ops.Tag(h.deps.History, ops.TagInput{
		ID:   input.ID,
		Tags: input.Tags,
		Mode: ops.TagMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleSweep handles the history_sweep tool call.
func (h *Handlers) HandleSweep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output, err := ops.Sweep(ctx, h.deps.History, h.deps.Sweeper)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleExport handles the history_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	output, err := ops.Export(ctx, h.deps.History, h.deps.Paths, ops.ExportInput{
		Path:          input.Path,
		FavoritesOnly: input.FavoritesOnly,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(output)
}

// HandleCaptureStatus handles the capture_status tool call.
func (h *Handlers) HandleCaptureStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.CaptureStatus(h.deps.History, h.deps.Capture))
}

// HandleCaptureToggle handles the capture_toggle tool call.
func (h *Handlers) HandleCaptureToggle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureToggleRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Enabled == nil {
		return errorResult(errors.NewInvalidRequest("enabled is required")), nil
	}
	return successResult(ops.SetCapture(h.deps.History, h.deps.Capture, ops.SetCaptureInput{Enabled: *input.Enabled}))
}

// errorResult renders err as a structured tool error.
// Wrapping context added around a KlipError is kept in the message.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if kErr, ok := errors.As(err); ok {
		message := kErr.Message
		if full := err.Error(); full != kErr.Error() {
			message = strings.TrimSuffix(full, kErr.Error()) + kErr.Message
		}
		errorObj := map[string]any{
			"code":    kErr.Code,
			"message": message,
			"status":  kErr.Status,
		}
		// Internal details can carry file paths or SQL errors.
		if kErr.Code != errors.ErrInternal && kErr.Details != nil {
			errorObj["details"] = kErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult wraps data in a JSON tool result.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

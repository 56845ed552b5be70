// Package ops implements the history operations shared by the CLI and the MCP server.
// Operations validate input and convert failures to KlipError at this boundary.
package ops

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hpungsan/klip/internal/capture"
	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/sweep"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	SummaryChars     = 120
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// History is the history store as seen by operations.
type History interface {
	Snapshot() []entry.Entry
	Get(id string) (entry.Entry, bool)
	RemoveMany(ids []string) int
	Clear() int
	SetFavorite(id string, favorite bool) bool
	SetTags(id string, tags []string) bool
	ReloadValidate(entries []entry.Entry) int
	Len() int
}

// Paster writes a history entry back to the clipboard.
type Paster interface {
	Paste(ctx context.Context, id string) (bool, error)
}

// Capture controls the capture monitor.
type Capture interface {
	Enabled() bool
	SetEnabled(on bool)
	Running() bool
	State() capture.State
}

// Sweeper runs a retention pass on demand.
type Sweeper interface {
	Sweep(ctx context.Context) (sweep.Report, error)
}

// SummaryItem is the compact listing form of an entry.
type SummaryItem struct {
	ID         string     `json:"id"`
	Kind       entry.Kind `json:"kind"`
	Preview    string     `json:"preview"`
	SizeBytes  int64      `json:"size_bytes"`
	Size       string     `json:"size"`
	CreatedAt  time.Time  `json:"created_at"`
	Age        string     `json:"age"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	UsageCount int        `json:"usage_count"`
	Favorite   bool       `json:"favorite"`
	Tags       []string   `json:"tags,omitempty"`
}

// Summarize builds the listing form of e relative to now.
func Summarize(e entry.Entry, now time.Time) SummaryItem {
	return SummaryItem{
		ID:         e.ID,
		Kind:       e.Kind,
		Preview:    entry.Truncate(e.Preview, SummaryChars),
		SizeBytes:  e.SizeBytes,
		Size:       humanize.Bytes(uint64(max(e.SizeBytes, 0))),
		CreatedAt:  e.CreatedAt,
		Age:        humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
		LastUsedAt: e.LastUsedAt,
		UsageCount: e.UsageCount,
		Favorite:   e.Favorite,
		Tags:       e.Tags,
	}
}

// page applies limit defaults and bounds and returns the window [offset, end) of total.
func page(limit, offset, total int) (Pagination, int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset = max(offset, 0)
	start := min(offset, total)
	end := min(start+limit, total)
	return Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
		Total:   total,
	}, start, end
}

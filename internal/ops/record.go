package ops

import (
	"time"

	"github.com/hpungsan/klip/internal/entry"
)

// Record is the complete serialized form of an entry, used by Get and by export files.
type Record struct {
	ID         string              `json:"id"`
	Kind       entry.Kind          `json:"kind"`
	Text       string              `json:"text,omitempty"`
	Formatted  string              `json:"formatted,omitempty"`
	Image      *entry.ImageMeta    `json:"image,omitempty"`
	Files      *entry.FileListMeta `json:"files,omitempty"`
	Preview    string              `json:"preview"`
	SizeBytes  int64               `json:"size_bytes"`
	CreatedAt  time.Time           `json:"created_at"`
	LastUsedAt *time.Time          `json:"last_used_at,omitempty"`
	UsageCount int                 `json:"usage_count"`
	Favorite   bool                `json:"favorite"`
	Tags       []string            `json:"tags,omitempty"`
	Assets     []entry.AssetRef    `json:"assets,omitempty"`
}

// NewRecord converts e to its serialized form.
func NewRecord(e entry.Entry) Record {
	c := e.Clone()
	return Record{
		ID:         c.ID,
		Kind:       c.Kind,
		Text:       c.Text,
		Formatted:  c.Formatted,
		Image:      c.Image,
		Files:      c.Files,
		Preview:    c.Preview,
		SizeBytes:  c.SizeBytes,
		CreatedAt:  c.CreatedAt,
		LastUsedAt: c.LastUsedAt,
		UsageCount: c.UsageCount,
		Favorite:   c.Favorite,
		Tags:       c.Tags,
		Assets:     c.Assets,
	}
}

// ToEntry converts r back to an entry.
func (r Record) ToEntry() entry.Entry {
	e := entry.Entry{
		ID:         r.ID,
		Kind:       r.Kind,
		Text:       r.Text,
		Formatted:  r.Formatted,
		Image:      r.Image,
		Files:      r.Files,
		Preview:    r.Preview,
		SizeBytes:  r.SizeBytes,
		CreatedAt:  r.CreatedAt.UTC(),
		LastUsedAt: r.LastUsedAt,
		UsageCount: r.UsageCount,
		Favorite:   r.Favorite,
		Tags:       r.Tags,
		Assets:     r.Assets,
	}
	if e.LastUsedAt != nil {
		t := e.LastUsedAt.UTC()
		e.LastUsedAt = &t
	}
	return e.Clone()
}

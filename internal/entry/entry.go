// Package entry defines the clipboard history entry and its per-kind metadata.
package entry

import (
	"crypto/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies the shape of an entry's primary content.
type Kind string

const (
	KindText     Kind = "text"
	KindRichText Kind = "rich_text"
	KindImage    Kind = "image"
	KindFileList Kind = "file_list"
	KindUnknown  Kind = "unknown"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindText, KindRichText, KindImage, KindFileList, KindUnknown}

// ParseKind returns the Kind named s, or false if s names no kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Kinds, k) {
		return k, true
	}
	return "", false
}

// Rank orders kinds for kind-then-date sorting.
func (k Kind) Rank() int {
	if i := slices.Index(Kinds, k); i >= 0 {
		return i
	}
	return len(Kinds)
}

// IsText reports whether the primary content is plain text.
func (k Kind) IsText() bool {
	return k == KindText || k == KindRichText
}

// Asset roles.
const (
	RoleImage     = "image"
	RoleThumbnail = "thumbnail"
)

// AssetRef points at a file in the asset store owned by exactly one entry.
type AssetRef struct {
	Role string `json:"role"`
	Path string `json:"path"`
}

// ImageMeta describes a captured image.
type ImageMeta struct {
	// Path is the full-resolution asset; empty when the asset write failed.
	Path     string `json:"path,omitempty"`
	Format   string `json:"format,omitempty"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Checksum string `json:"checksum,omitempty"`
}

// FileListMeta describes a captured list of filesystem paths.
type FileListMeta struct {
	// Paths is the ordered list of captured files and directories.
	Paths []string `json:"paths"`

	// Directories counts the entries of Paths that are directories.
	Directories int `json:"directories,omitempty"`
}

// Entry is one item of clipboard history.
type Entry struct {
	// ID is a ULID assigned at capture, immutable.
	ID string

	Kind Kind

	// Text is the plain-text content of text and rich_text entries.
	Text string

	// Formatted is the raw markup of a rich_text entry.
	Formatted string

	Image *ImageMeta
	Files *FileListMeta

	// Preview is the bounded plain-text projection used for matching and display.
	Preview string

	SizeBytes int64

	CreatedAt  time.Time
	LastUsedAt *time.Time
	UsageCount int

	Favorite bool
	Tags     []string

	// Assets are the asset-store files owned by this entry.
	Assets []AssetRef
}

// Content returns the canonical string projection of the primary content.
func (e *Entry) Content() string {
	switch e.Kind {
	case KindImage:
		if e.Image != nil {
			return e.Image.Path
		}
		return ""
	case KindFileList:
		if e.Files != nil {
			return strings.Join(e.Files.Paths, "\n")
		}
		return ""
	default:
		return e.Text
	}
}

// Asset returns the path of the asset with the given role, or "".
func (e *Entry) Asset(role string) string {
	for _, a := range e.Assets {
		if a.Role == role {
			return a.Path
		}
	}
	return ""
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	c := e
	if e.Image != nil {
		img := *e.Image
		c.Image = &img
	}
	if e.Files != nil {
		files := *e.Files
		files.Paths = slices.Clone(e.Files.Paths)
		c.Files = &files
	}
	if e.LastUsedAt != nil {
		t := *e.LastUsedAt
		c.LastUsedAt = &t
	}
	c.Tags = slices.Clone(e.Tags)
	c.Assets = slices.Clone(e.Assets)
	return c
}

// IsDuplicate reports whether e and other carry the same content:
// same kind, and identical text, image byte size, or path list.
func (e *Entry) IsDuplicate(other *Entry) bool {
	if e.Kind != other.Kind {
		return false
	}
	switch e.Kind {
	case KindText, KindRichText:
		return e.Text == other.Text
	case KindImage:
		return e.SizeBytes == other.SizeBytes
	case KindFileList:
		var a, b []string
		if e.Files != nil {
			a = e.Files.Paths
		}
		if other.Files != nil {
			b = other.Files.Paths
		}
		return slices.Equal(a, b)
	default:
		return false
	}
}

// MarkUsed records a paste at now.
func (e *Entry) MarkUsed(now time.Time) {
	e.UsageCount++
	t := now.UTC()
	e.LastUsedAt = &t
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new ULID string. IDs are monotonic within a process.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

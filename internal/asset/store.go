// Package asset persists image payloads and thumbnails on disk, keyed by entry ID,
// and reclaims files whose owning entry is gone.
package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/metrics"
)

const (
	imagesDir   = "images"
	previewsDir = "previews"

	// DefaultGracePeriod protects files written by a capture that has not
	// reached the history yet from Reclaim.
	DefaultGracePeriod = time.Minute
)

// Saved describes the files written for one image.
type Saved struct {
	Path      string
	ThumbPath string
	Format    string
	Checksum  string
}

// Refs returns the asset references of s.
func (s Saved) Refs() []entry.AssetRef {
	refs := []entry.AssetRef{{Role: entry.RoleImage, Path: s.Path}}
	if s.ThumbPath != "" {
		refs = append(refs, entry.AssetRef{Role: entry.RoleThumbnail, Path: s.ThumbPath})
	}
	return refs
}

// Store manages <root>/images and <root>/previews.
type Store struct {
	root   string
	logger *zap.Logger
	grace  time.Duration
	now    func() time.Time

	mu      sync.Mutex
	pending []string
	wake    chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGracePeriod sets how old an orphaned file must be before Reclaim deletes it.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Store) { s.grace = d }
}

// New creates the asset directories under root and returns a Store.
func New(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:   root,
		logger: zap.NewNop(),
		grace:  DefaultGracePeriod,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{imagesDir, previewsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0700); err != nil {
			return nil, fmt.Errorf("create asset dir: %w", err)
		}
	}
	return s, nil
}

// Root returns the asset root directory.
func (s *Store) Root() string {
	return s.root
}

// ImagePath returns where the full image of id is stored for the given format.
func (s *Store) ImagePath(id, format string) string {
	return filepath.Join(s.root, imagesDir, id+extension(format))
}

// ThumbnailPath returns where the thumbnail of id is stored.
func (s *Store) ThumbnailPath(id string) string {
	return filepath.Join(s.root, previewsDir, id+".png")
}

// SaveImage writes data in its original encoding plus a PNG thumbnail whose
// longer edge is at most thumbEdge. Partial writes are removed on failure.
func (s *Store) SaveImage(id string, data []byte, thumbEdge int) (Saved, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Saved{}, fmt.Errorf("decode image: %w", err)
	}

	saved := Saved{
		Path:     s.ImagePath(id, format),
		Format:   format,
		Checksum: Checksum(data),
	}
	if err := writeFileAtomic(saved.Path, data); err != nil {
		return Saved{}, fmt.Errorf("write image: %w", err)
	}

	thumbPath := s.ThumbnailPath(id)
	if err := writeThumbnail(img, thumbPath, thumbEdge); err != nil {
		_ = os.Remove(saved.Path)
		return Saved{}, fmt.Errorf("write thumbnail: %w", err)
	}
	saved.ThumbPath = thumbPath
	return saved, nil
}

// SaveThumbnailFromFile writes a thumbnail of the image file at src for id.
func (s *Store) SaveThumbnailFromFile(id, src string, thumbEdge int) (string, error) {
	img, err := imaging.Open(src)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	thumbPath := s.ThumbnailPath(id)
	if err := writeThumbnail(img, thumbPath, thumbEdge); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return thumbPath, nil
}

// ReadImage returns the bytes of a stored asset.
func (s *Store) ReadImage(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Exists reports whether the asset at path is present.
func (s *Store) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Schedule queues refs for deletion by the next Drain.
func (s *Store) Schedule(refs []entry.AssetRef) {
	if len(refs) == 0 {
		return
	}
	s.mu.Lock()
	for _, r := range refs {
		if r.Path != "" {
			s.pending = append(s.pending, r.Path)
		}
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued deletions.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Drain deletes every queued asset and returns how many files were removed.
func (s *Store) Drain() int {
	s.mu.Lock()
	paths := s.pending
	s.pending = nil
	s.mu.Unlock()

	removed := 0
	for _, p := range paths {
		if !s.owns(p) {
			s.logger.Warn("refusing to delete file outside asset root", zap.String("path", p))
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, os.ErrNotExist):
		default:
			s.logger.Warn("asset delete failed", zap.String("path", p), zap.Error(err))
		}
	}
	if removed > 0 {
		metrics.RecordAssetsReclaimed(removed)
		s.logger.Debug("assets drained", zap.Int("removed", removed))
	}
	return removed
}

// Run drains scheduled deletions as they arrive until ctx is done,
// then drains once more.
func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.Drain()
			return nil
		case <-s.wake:
			s.Drain()
		}
	}
}

// Reclaim deletes every stored file whose key is not in validIDs and which is
// older than the grace period. It returns the number of files removed.
func (s *Store) Reclaim(validIDs map[string]bool) (int, error) {
	cutoff := s.now().Add(-s.grace)
	removed := 0
	for _, dir := range []string{imagesDir, previewsDir} {
		full := filepath.Join(s.root, dir)
		des, err := os.ReadDir(full)
		if err != nil {
			return removed, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, de := range des {
			if de.IsDir() {
				continue
			}
			name := de.Name()
			if validIDs[strings.TrimSuffix(name, filepath.Ext(name))] {
				continue
			}
			info, err := de.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(full, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("asset reclaim failed", zap.String("path", name), zap.Error(err))
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		metrics.RecordAssetsReclaimed(removed)
		s.logger.Info("orphaned assets reclaimed", zap.Int("removed", removed))
	}
	return removed, nil
}

// Checksum returns the hex xxh3 digest of data.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

func (s *Store) owns(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

func extension(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".img"
	default:
		return "." + format
	}
}

func writeThumbnail(img image.Image, path string, edge int) error {
	if edge <= 0 {
		edge = 150
	}
	thumb := imaging.Fit(img, edge, edge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

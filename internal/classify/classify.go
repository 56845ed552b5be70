// Package classify turns a raw clipboard payload into a normalized history entry.
package classify

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/asset"
	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/entry"
)

// ErrNoCapture means the payload yields no entry: empty, whitespace-only,
// unrecognized, or filtered down to nothing.
var ErrNoCapture = errors.New("no capture")

// Payload is the clipboard content as offered by the host, one field per representation.
type Payload struct {
	Text   string
	Markup string // text/html or rtf offered alongside Text
	Image  []byte // encoded image bytes
	Files  []string
}

// Empty reports whether p carries no representation at all.
func (p Payload) Empty() bool {
	return p.Text == "" && p.Markup == "" && len(p.Image) == 0 && len(p.Files) == 0
}

// Assets is the subset of the asset store the classifier writes to.
type Assets interface {
	SaveImage(id string, data []byte, thumbEdge int) (asset.Saved, error)
	SaveThumbnailFromFile(id, src string, thumbEdge int) (string, error)
}

// Classifier builds entries from payloads using the configuration in effect at call time.
type Classifier struct {
	cfg    config.Provider
	assets Assets
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the classifier logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// New returns a Classifier. assets may be nil, in which case images are
// recorded without files.
func New(cfg config.Provider, assets Assets, opts ...Option) *Classifier {
	c := &Classifier{
		cfg:    cfg,
		assets: assets,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  entry.NewID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the entry for p, or ErrNoCapture.
// The first representation present decides the kind, in the order
// files, image, text. An undecodable image falls back to the text, if any.
func (c *Classifier) Classify(p Payload) (entry.Entry, error) {
	cfg := c.cfg.Current()

	if len(p.Files) > 0 {
		return c.classifyFiles(cfg, p.Files)
	}
	if len(p.Image) > 0 {
		e, err := c.classifyImage(cfg, p.Image)
		if !errors.Is(err, ErrNoCapture) || (p.Text == "" && p.Markup == "") {
			return e, err
		}
	}
	return c.classifyText(cfg, p.Text, p.Markup)
}

func (c *Classifier) base(kind entry.Kind) entry.Entry {
	return entry.Entry{
		ID:        c.newID(),
		Kind:      kind,
		CreatedAt: c.now().UTC(),
	}
}

func (c *Classifier) classifyText(cfg *config.Config, text, markup string) (entry.Entry, error) {
	var formatted, plain string
	switch {
	case strings.TrimSpace(markup) != "":
		formatted = markup
		plain = text
		if strings.TrimSpace(plain) == "" {
			plain = PlainText(markup)
		}
	case HasMarkup(text):
		formatted = text
		plain = PlainText(text)
	default:
		plain = text
	}

	if strings.TrimSpace(plain) == "" {
		return entry.Entry{}, ErrNoCapture
	}

	kind := entry.KindText
	if formatted != "" {
		kind = entry.KindRichText
	}
	e := c.base(kind)
	e.Text = plain
	e.Formatted = formatted
	e.Preview = entry.Truncate(plain, cfg.PreviewChars)
	e.SizeBytes = int64(len(text) + len(markup))
	return e, nil
}

func (c *Classifier) classifyFiles(cfg *config.Config, paths []string) (entry.Entry, error) {
	limit := cfg.MaxFileBytes()
	var (
		accepted []string
		dirs     int
		total    int64
		captured int64
	)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.IsDir() {
			accepted = append(accepted, p)
			dirs++
			continue
		}
		if cfg.IsExcludedExtension(filepath.Ext(p)) {
			continue
		}
		// The running total includes files rejected for size, so once the
		// ceiling is crossed no later file fits.
		total += info.Size()
		if limit > 0 && total > limit {
			continue
		}
		accepted = append(accepted, p)
		captured += info.Size()
	}

	if len(accepted) == 0 {
		return entry.Entry{}, ErrNoCapture
	}

	e := c.base(entry.KindFileList)
	e.Files = &entry.FileListMeta{Paths: accepted, Directories: dirs}
	e.Preview = entry.Truncate(filesPreview(accepted), cfg.PreviewChars)
	e.SizeBytes = captured

	if len(accepted) == 1 && dirs == 0 && isImagePath(accepted[0]) && c.assets != nil {
		thumb, err := c.assets.SaveThumbnailFromFile(e.ID, accepted[0], cfg.ThumbnailSize)
		if err != nil {
			c.logger.Debug("file thumbnail skipped", zap.String("path", accepted[0]), zap.Error(err))
		} else {
			e.Assets = []entry.AssetRef{{Role: entry.RoleThumbnail, Path: thumb}}
		}
	}
	return e, nil
}

func (c *Classifier) classifyImage(cfg *config.Config, data []byte) (entry.Entry, error) {
	ic, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return entry.Entry{}, ErrNoCapture
	}

	e := c.base(entry.KindImage)
	e.Image = &entry.ImageMeta{
		Format:   format,
		Width:    ic.Width,
		Height:   ic.Height,
		Checksum: asset.Checksum(data),
	}
	e.Preview = fmt.Sprintf("Image %dx%d", ic.Width, ic.Height)
	e.SizeBytes = int64(len(data))

	if c.assets == nil {
		return e, nil
	}
	saved, err := c.assets.SaveImage(e.ID, data, cfg.ThumbnailSize)
	if err != nil {
		c.logger.Warn("image asset write failed, recording entry without assets",
			zap.String("id", e.ID), zap.Error(err))
		return e, nil
	}
	e.Image.Path = saved.Path
	e.Assets = saved.Refs()
	return e, nil
}

// filesPreview names a single file, or lists the first three names
// followed by a count of the rest.
func filesPreview(paths []string) string {
	names := make([]string, 0, min(len(paths), 3))
	for _, p := range paths[:min(len(paths), 3)] {
		names = append(names, filepath.Base(p))
	}
	preview := strings.Join(names, ", ")
	if extra := len(paths) - 3; extra > 0 {
		preview += fmt.Sprintf(" …and %d more", extra)
	}
	return preview
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

func isImagePath(p string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(p))]
}

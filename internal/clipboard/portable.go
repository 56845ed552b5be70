package clipboard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/classify"
)

// DefaultPollInterval is how often the portable adapter checks for changes.
const DefaultPollInterval = 500 * time.Millisecond

// ErrTextOnly is returned when the portable adapter is asked to write non-text content.
var ErrTextOnly = errors.New("portable clipboard supports text only")

// Portable is a text-only clipboard for hosts without a change notification
// API. Changes are detected by hashing the clipboard text on an interval.
type Portable struct {
	interval time.Duration
	logger   *zap.Logger

	readAll  func() (string, error)
	writeAll func(string) error
}

// NewPortable returns a Portable adapter backed by the system clipboard tools.
func NewPortable(logger *zap.Logger, interval time.Duration) *Portable {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Portable{
		interval: interval,
		logger:   logger,
		readAll:  clipboard.ReadAll,
		writeAll: clipboard.WriteAll,
	}
}

// Name implements Host.
func (p *Portable) Name() string { return "portable" }

// Read returns the clipboard text.
func (p *Portable) Read(context.Context) (classify.Payload, error) {
	text, err := p.readAll()
	if err != nil {
		return classify.Payload{}, err
	}
	return classify.Payload{Text: text}, nil
}

// Write stores the text form of pl. Images cannot be written; file lists are
// written as newline-separated paths.
func (p *Portable) Write(_ context.Context, pl classify.Payload) error {
	switch {
	case len(pl.Image) > 0:
		return ErrTextOnly
	case len(pl.Files) > 0:
		return p.writeAll(strings.Join(pl.Files, "\n"))
	default:
		return p.writeAll(pl.Text)
	}
}

// Changes polls the clipboard and signals whenever its text hash changes.
// The content present when polling starts is not reported.
func (p *Portable) Changes(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	last, _ := p.hash()

	go func() {
		defer close(ch)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h, err := p.hash()
				if err != nil {
					p.logger.Debug("clipboard poll failed", zap.Error(err))
					continue
				}
				if h == last {
					continue
				}
				last = h
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func (p *Portable) hash() (uint64, error) {
	text, err := p.readAll()
	if err != nil {
		return 0, err
	}
	return xxh3.HashString(text), nil
}

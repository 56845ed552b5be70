// Package capture watches the host clipboard and feeds new content into the history.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/classify"
	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/metrics"
)

// Paste failures, distinguishable with errors.Is.
var (
	ErrUnsupportedKind = errors.New("entry kind cannot be written to the clipboard")
	ErrAssetRead       = errors.New("read image asset")
	ErrClipboardWrite  = errors.New("write clipboard")
)

// Clipboard reads and writes the host clipboard.
type Clipboard interface {
	Read(ctx context.Context) (classify.Payload, error)
	Write(ctx context.Context, p classify.Payload) error
}

// SignalSource delivers one value per clipboard change until ctx is done.
type SignalSource interface {
	Changes(ctx context.Context) (<-chan struct{}, error)
}

// Classifier turns a payload into an entry.
type Classifier interface {
	Classify(p classify.Payload) (entry.Entry, error)
}

// History is the part of the history store the monitor mutates.
type History interface {
	Insert(e entry.Entry) bool
	Get(id string) (entry.Entry, bool)
	Touch(id string) bool
}

// Assets reads stored images for paste and releases assets of rejected captures.
type Assets interface {
	ReadImage(path string) ([]byte, error)
	Schedule(refs []entry.AssetRef)
}

// State is the monitor's capture state.
type State int

const (
	// Idle: not running, or capture toggled off. Signals are ignored.
	Idle State = iota
	// Armed: signals trigger captures.
	Armed
	// Suspended: a paste is in flight or cooling down. Signals are ignored.
	Suspended
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Suspended:
		return "suspended"
	default:
		return "idle"
	}
}

// Monitor is the capture state machine.
type Monitor struct {
	clip       Clipboard
	signals    SignalSource
	classifier Classifier
	history    History
	assets     Assets
	cfg        config.Provider
	logger     *zap.Logger

	enabled atomic.Bool
	running atomic.Bool
	pasting atomic.Int32

	pending chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// New returns a Monitor. Capture starts enabled unless the configuration disables it.
func New(clip Clipboard, signals SignalSource, classifier Classifier, history History, assets Assets, cfg config.Provider, opts ...Option) *Monitor {
	m := &Monitor{
		clip:       clip,
		signals:    signals,
		classifier: classifier,
		history:    history,
		assets:     assets,
		cfg:        cfg,
		logger:     zap.NewNop(),
		pending:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.enabled.Store(!cfg.Current().DisableCapture)
	return m
}

// SetEnabled toggles capture on or off.
func (m *Monitor) SetEnabled(on bool) {
	if m.enabled.Swap(on) != on {
		m.logger.Info("capture toggled", zap.Bool("enabled", on))
	}
}

// Enabled reports whether capture is toggled on.
func (m *Monitor) Enabled() bool {
	return m.enabled.Load()
}

// Running reports whether Run is listening for changes.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// State returns the current state.
func (m *Monitor) State() State {
	switch {
	case !m.running.Load() || !m.enabled.Load():
		return Idle
	case m.pasting.Load() > 0:
		return Suspended
	default:
		return Armed
	}
}

// Run listens for clipboard changes until ctx is done or the signal source
// closes. A capture in progress when ctx is cancelled runs to completion.
func (m *Monitor) Run(ctx context.Context) error {
	changes, err := m.signals.Changes(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to clipboard changes: %w", err)
	}

	m.running.Store(true)
	defer m.running.Store(false)
	m.logger.Info("capture monitor started", zap.String("state", m.State().String()))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.worker(context.WithoutCancel(ctx), stop)
	}()
	defer func() {
		close(stop)
		wg.Wait()
		m.logger.Info("capture monitor stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if st := m.State(); st != Armed {
				m.logger.Debug("clipboard change ignored", zap.String("state", st.String()))
				continue
			}
			select {
			case m.pending <- struct{}{}:
			default:
				// A capture is already queued; it will read the latest content.
			}
		}
	}
}

func (m *Monitor) worker(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-m.pending:
			m.captureOnce(ctx)
		}
	}
}

// captureOnce reads, classifies and inserts the current clipboard content.
func (m *Monitor) captureOnce(ctx context.Context) {
	if st := m.State(); st != Armed {
		m.logger.Debug("queued capture dropped", zap.String("state", st.String()))
		return
	}

	p, err := m.clip.Read(ctx)
	if err != nil {
		metrics.RecordCaptureError()
		m.logger.Warn("clipboard read failed", zap.Error(err))
		return
	}
	if p.Empty() {
		metrics.RecordNoCapture()
		return
	}

	e, err := m.classifier.Classify(p)
	if err != nil {
		metrics.RecordNoCapture()
		if !errors.Is(err, classify.ErrNoCapture) {
			m.logger.Warn("classification failed", zap.Error(err))
		}
		return
	}

	if !m.history.Insert(e) {
		metrics.RecordDuplicate()
		if len(e.Assets) > 0 && m.assets != nil {
			m.assets.Schedule(e.Assets)
		}
		return
	}
	metrics.RecordCapture(string(e.Kind))
	m.logger.Info("entry captured",
		zap.String("id", e.ID), zap.String("kind", string(e.Kind)), zap.Int64("size", e.SizeBytes))
}

// Paste writes the entry with id back to the clipboard and records the use.
// It returns false with a nil error when id is not in the history. Capture
// stays suspended from the write until the cool-down after it has elapsed,
// even if ctx ends first.
func (m *Monitor) Paste(ctx context.Context, id string) (bool, error) {
	e, ok := m.history.Get(id)
	if !ok {
		m.logger.Info("paste of absent entry ignored", zap.String("id", id))
		return false, nil
	}

	p, err := m.nativePayload(e)
	if err != nil {
		metrics.RecordPaste(false)
		return false, err
	}

	m.pasting.Add(1)
	if err := m.clip.Write(ctx, p); err != nil {
		m.pasting.Add(-1)
		metrics.RecordPaste(false)
		m.logger.Warn("clipboard write failed", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("%w: %w", ErrClipboardWrite, err)
	}

	m.history.Touch(id)
	metrics.RecordPaste(true)

	done := make(chan struct{})
	time.AfterFunc(m.cfg.Current().PasteCooldown(), func() {
		m.pasting.Add(-1)
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
	}
	return true, nil
}

// nativePayload builds the host representation of e.
func (m *Monitor) nativePayload(e entry.Entry) (classify.Payload, error) {
	switch e.Kind {
	case entry.KindText:
		return classify.Payload{Text: e.Text}, nil
	case entry.KindRichText:
		return classify.Payload{Text: e.Text, Markup: e.Formatted}, nil
	case entry.KindFileList:
		if e.Files == nil || len(e.Files.Paths) == 0 {
			return classify.Payload{}, ErrUnsupportedKind
		}
		return classify.Payload{
			Files: append([]string(nil), e.Files.Paths...),
			Text:  strings.Join(e.Files.Paths, "\n"),
		}, nil
	case entry.KindImage:
		if e.Image == nil || e.Image.Path == "" || m.assets == nil {
			return classify.Payload{}, fmt.Errorf("image %s has no stored asset: %w", e.ID, ErrUnsupportedKind)
		}
		data, err := m.assets.ReadImage(e.Image.Path)
		if err != nil {
			return classify.Payload{}, fmt.Errorf("%w %s: %w", ErrAssetRead, e.Image.Path, err)
		}
		return classify.Payload{Image: data}, nil
	default:
		return classify.Payload{}, ErrUnsupportedKind
	}
}

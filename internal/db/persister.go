package db

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/metrics"
)

// DefaultSaveDelay coalesces bursts of history changes into one write.
const DefaultSaveDelay = 2 * time.Second

// Source provides the history snapshot to persist.
type Source interface {
	Snapshot() []entry.Entry
}

// Persister autosaves history after changes. It implements history.Listener.
type Persister struct {
	db     *sql.DB
	src    Source
	logger *zap.Logger
	delay  time.Duration

	dirty   chan struct{}
	pending atomic.Bool
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithLogger sets the persister's logger.
func WithLogger(l *zap.Logger) PersisterOption {
	return func(p *Persister) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSaveDelay sets the debounce between a change and the save it triggers.
func WithSaveDelay(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.delay = d
		}
	}
}

// NewPersister creates a Persister writing src's snapshots to db.
func NewPersister(db *sql.DB, src Source, opts ...PersisterOption) *Persister {
	p := &Persister{
		db:     db,
		src:    src,
		logger: zap.NewNop(),
		delay:  DefaultSaveDelay,
		dirty:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnCaptured is a no-op; every capture is followed by OnHistoryChanged.
func (p *Persister) OnCaptured(entry.Entry) {}

// OnHistoryChanged marks the history dirty. It never blocks the notifier.
func (p *Persister) OnHistoryChanged() {
	p.pending.Store(true)
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

// Pending reports whether changes are waiting to be saved.
func (p *Persister) Pending() bool {
	return p.pending.Load()
}

// Save writes the current snapshot now.
func (p *Persister) Save(ctx context.Context) error {
	p.pending.Store(false)
	snap := p.src.Snapshot()

	start := time.Now()
	err := SaveEntries(ctx, p.db, snap)
	metrics.RecordSave(time.Since(start), err == nil)
	if err != nil {
		p.pending.Store(true)
		return err
	}
	metrics.SetHistorySize(len(snap))
	p.logger.Debug("history saved", zap.Int("entries", len(snap)), zap.Duration("took", time.Since(start)))
	return nil
}

// Run saves after each quiet period following a change, until ctx is done.
// Unsaved changes are flushed before Run returns.
func (p *Persister) Run(ctx context.Context) error {
	timer := time.NewTimer(p.delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if !p.Pending() {
				return nil
			}
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := p.Save(flushCtx); err != nil {
				p.logger.Warn("final history save failed", zap.Error(err))
				return err
			}
			return nil

		case <-p.dirty:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.delay)

		case <-timer.C:
			if err := p.Save(ctx); err != nil {
				p.logger.Warn("history autosave failed", zap.Error(err))
			}
		}
	}
}

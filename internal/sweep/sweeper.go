// Package sweep applies retention rules to the history and garbage-collects assets.
package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/history"
	"github.com/hpungsan/klip/internal/metrics"
)

// History is the part of the history store a sweep reads and prunes.
type History interface {
	Snapshot() []entry.Entry
	RemoveMany(ids []string) int
}

// Assets reclaims files no surviving entry owns.
type Assets interface {
	Reclaim(validIDs map[string]bool) (int, error)
	Drain() int
}

// Report summarizes one sweep.
type Report struct {
	Aged            int           `json:"aged"`
	OverCap         int           `json:"over_cap"`
	Invalid         int           `json:"invalid"`
	Removed         int           `json:"removed"`
	AssetsReclaimed int           `json:"assets_reclaimed"`
	Duration        time.Duration `json:"duration_ns"`
}

// Sweeper runs retention sweeps periodically and on demand.
type Sweeper struct {
	history History
	assets  Assets
	cfg     config.Provider
	valid   history.ValidFunc
	logger  *zap.Logger
	now     func() time.Time
	trigger chan struct{}
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the sweeper logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for the retention cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithValidator overrides the content validity check.
func WithValidator(fn history.ValidFunc) Option {
	return func(s *Sweeper) { s.valid = fn }
}

// New returns a Sweeper. assets may be nil.
func New(h History, assets Assets, cfg config.Provider, opts ...Option) *Sweeper {
	s := &Sweeper{
		history: h,
		assets:  assets,
		cfg:     cfg,
		valid:   history.Valid,
		logger:  zap.NewNop(),
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trigger requests a sweep from a running Run loop. Requests coalesce.
func (s *Sweeper) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run sweeps once immediately, then every configured interval and on
// Trigger, until ctx is done. A sweep in progress completes first.
func (s *Sweeper) Run(ctx context.Context) error {
	s.sweepLogged(ctx)

	timer := time.NewTimer(s.interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			s.sweepLogged(ctx)
			timer.Reset(s.interval())
		case <-s.trigger:
			s.sweepLogged(ctx)
		}
	}
}

func (s *Sweeper) interval() time.Duration {
	if d := s.cfg.Current().SweepInterval(); d > 0 {
		return d
	}
	return time.Duration(config.DefaultSweepIntervalHours) * time.Hour
}

func (s *Sweeper) sweepLogged(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("sweep failed", zap.Error(err))
	}
}

// Sweep applies, against one snapshot: age removal of non-favorites, the
// count cap over what remains, then the content validity check. Removed
// entries go in a single batch; orphaned assets are then reclaimed.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	start := time.Now()
	cfg := s.cfg.Current()
	var rep Report

	snap := s.history.Snapshot()
	retention := cfg.Retention()
	cutoff := s.now().Add(-retention)
	limit := cfg.HistoryCap()

	var ids []string
	survivors := 0
	for _, e := range snap {
		if retention > 0 && !e.Favorite && e.CreatedAt.Before(cutoff) {
			rep.Aged++
			ids = append(ids, e.ID)
			continue
		}
		// The cap counts every age survivor, valid or not.
		survivors++
		switch {
		case limit > 0 && survivors > limit:
			rep.OverCap++
		case !s.valid(e):
			rep.Invalid++
		default:
			continue
		}
		ids = append(ids, e.ID)
	}

	rep.Removed = s.history.RemoveMany(ids)

	if s.assets != nil {
		valid := make(map[string]bool)
		for _, e := range s.history.Snapshot() {
			valid[e.ID] = true
		}
		n, err := s.assets.Reclaim(valid)
		rep.AssetsReclaimed = n
		rep.AssetsReclaimed += s.assets.Drain()
		if err != nil {
			rep.Duration = time.Since(start)
			return rep, err
		}
	}

	rep.Duration = time.Since(start)
	metrics.RecordSweep(rep.Duration, rep.Aged, rep.OverCap, rep.Invalid)
	if rep.Removed > 0 || rep.AssetsReclaimed > 0 {
		s.logger.Info("sweep completed",
			zap.Int("aged", rep.Aged), zap.Int("over_cap", rep.OverCap), zap.Int("invalid", rep.Invalid),
			zap.Int("assets_reclaimed", rep.AssetsReclaimed), zap.Duration("duration", rep.Duration))
	} else {
		s.logger.Debug("sweep found nothing to remove")
	}
	return rep, nil
}

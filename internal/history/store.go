// Package history holds the bounded, ordered, de-duplicated clipboard history.
package history

import (
	"os"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/metrics"
)

// Listener receives change notifications. Calls are synchronous, made after
// the mutating operation has released the store lock.
type Listener interface {
	OnCaptured(e entry.Entry)
	OnHistoryChanged()
}

// Reclaimer accepts assets whose owning entry left the history.
type Reclaimer interface {
	Schedule(refs []entry.AssetRef)
}

// ValidFunc reports whether an entry's referenced content still exists.
type ValidFunc func(e entry.Entry) bool

// Store is the in-memory history, newest entry first.
type Store struct {
	cfg       config.Provider
	reclaimer Reclaimer
	valid     ValidFunc
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries []entry.Entry

	lmu       sync.Mutex
	listeners map[int]Listener
	nextSub   int
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

// WithReclaimer sets where released assets are scheduled for deletion.
func WithReclaimer(r Reclaimer) Option {
	return func(s *Store) { s.reclaimer = r }
}

// WithValidator overrides the content validity check used by ReloadValidate.
func WithValidator(fn ValidFunc) Option {
	return func(s *Store) { s.valid = fn }
}

// WithClock overrides the time source used by Touch.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty Store.
func New(cfg config.Provider, opts ...Option) *Store {
	s := &Store{
		cfg:       cfg,
		valid:     Valid,
		logger:    zap.NewNop(),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Valid reports whether e's referenced content still exists on disk.
// Text is always valid; an image is valid when its asset exists or it never
// had one; a file list is valid when any of its paths exists.
func Valid(e entry.Entry) bool {
	switch e.Kind {
	case entry.KindImage:
		if e.Image == nil || e.Image.Path == "" {
			return true
		}
		return exists(e.Image.Path)
	case entry.KindFileList:
		if e.Files == nil {
			return false
		}
		return slices.ContainsFunc(e.Files.Paths, exists)
	default:
		return true
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.lmu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = l
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) snapshotListeners() []Listener {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}

func (s *Store) fireCaptured(e entry.Entry) {
	for _, l := range s.snapshotListeners() {
		l.OnCaptured(e.Clone())
	}
}

func (s *Store) fireChanged() {
	for _, l := range s.snapshotListeners() {
		l.OnHistoryChanged()
	}
}

func (s *Store) release(removed []entry.Entry) {
	if s.reclaimer == nil {
		return
	}
	var refs []entry.AssetRef
	for _, e := range removed {
		refs = append(refs, e.Assets...)
	}
	if len(refs) > 0 {
		s.reclaimer.Schedule(refs)
	}
}

// Insert prepends e unless it duplicates the newest entry, then evicts from
// the tail down to the configured cap. It reports whether e was inserted.
func (s *Store) Insert(e entry.Entry) bool {
	limit := s.cfg.Current().HistoryCap()
	e = e.Clone()
	e.Tags = entry.NormalizeTags(e.Tags)

	s.mu.Lock()
	if len(s.entries) > 0 && s.entries[0].IsDuplicate(&e) {
		s.mu.Unlock()
		s.logger.Debug("duplicate of newest entry suppressed", zap.String("kind", string(e.Kind)))
		return false
	}
	s.entries = slices.Insert(s.entries, 0, e)
	var evicted []entry.Entry
	if limit > 0 && len(s.entries) > limit {
		evicted = slices.Clone(s.entries[limit:])
		s.entries = slices.Clip(s.entries[:limit])
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		s.logger.Debug("history cap evicted entries", zap.Int("count", len(evicted)))
		metrics.RecordEvictions(len(evicted))
	}
	s.release(evicted)
	s.fireCaptured(e)
	s.fireChanged()
	return true
}

// mutate applies fn to the entry with id under the lock.
func (s *Store) mutate(id string, fn func(e *entry.Entry)) bool {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	fn(&s.entries[i])
	s.mu.Unlock()
	return true
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.entries, func(e entry.Entry) bool { return e.ID == id })
}

// Touch records a paste of id without changing its position.
// An absent id is a logged no-op.
func (s *Store) Touch(id string) bool {
	now := s.now()
	if !s.mutate(id, func(e *entry.Entry) { e.MarkUsed(now) }) {
		s.logger.Info("touch of absent entry ignored", zap.String("id", id))
		return false
	}
	s.fireChanged()
	return true
}

// SetFavorite marks or unmarks id as a favorite.
func (s *Store) SetFavorite(id string, favorite bool) bool {
	if !s.mutate(id, func(e *entry.Entry) { e.Favorite = favorite }) {
		return false
	}
	s.fireChanged()
	return true
}

// SetTags replaces the tags of id.
func (s *Store) SetTags(id string, tags []string) bool {
	tags = entry.NormalizeTags(tags)
	if !s.mutate(id, func(e *entry.Entry) { e.Tags = slices.Clone(tags) }) {
		return false
	}
	s.fireChanged()
	return true
}

// Remove deletes id if present and schedules its assets. Idempotent.
func (s *Store) Remove(id string) bool {
	return s.RemoveMany([]string{id}) == 1
}

// RemoveMany deletes every present id with a single change notification.
// It returns the number of entries removed.
func (s *Store) RemoveMany(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	var removed []entry.Entry
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if drop[e.ID] {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	if len(removed) > 0 {
		s.entries = kept
	}
	s.mu.Unlock()

	if len(removed) == 0 {
		return 0
	}
	s.release(removed)
	s.fireChanged()
	return len(removed)
}

// Clear empties the history and returns the number of entries removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	removed := s.entries
	s.entries = nil
	s.mu.Unlock()

	s.release(removed)
	s.fireChanged()
	return len(removed)
}

// Snapshot returns a deep copy of the history, newest first.
func (s *Store) Snapshot() []entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entry.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out
}

// Get returns a copy of the entry with id.
func (s *Store) Get(id string) (entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.entries[i].Clone(), true
	}
	return entry.Entry{}, false
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ReloadValidate replaces the history with entries, keeping their order and
// dropping those whose content no longer exists, repeated IDs, and anything
// beyond the cap. Entries already in the store are discarded without
// releasing their assets. It returns the number of entries kept.
func (s *Store) ReloadValidate(entries []entry.Entry) int {
	limit := s.cfg.Current().HistoryCap()

	kept := make([]entry.Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	dropped := 0
	for _, e := range entries {
		if e.ID == "" || seen[e.ID] {
			dropped++
			continue
		}
		if !s.valid(e) {
			s.logger.Info("dropping entry whose content is gone",
				zap.String("id", e.ID), zap.String("kind", string(e.Kind)))
			dropped++
			continue
		}
		seen[e.ID] = true
		c := e.Clone()
		c.Tags = entry.NormalizeTags(c.Tags)
		kept = append(kept, c)
	}

	var overflow []entry.Entry
	if limit > 0 && len(kept) > limit {
		overflow = kept[limit:]
		kept = kept[:limit]
	}

	s.mu.Lock()
	s.entries = kept
	s.mu.Unlock()

	s.release(overflow)
	if dropped > 0 || len(overflow) > 0 {
		s.logger.Info("history reloaded",
			zap.Int("kept", len(kept)), zap.Int("dropped", dropped), zap.Int("over_cap", len(overflow)))
	}
	s.fireChanged()
	return len(kept)
}

package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/entry"
)

type recordingReclaimer struct {
	mu   sync.Mutex
	refs []entry.AssetRef
}

func (r *recordingReclaimer) Schedule(refs []entry.AssetRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, refs...)
}

func (r *recordingReclaimer) scheduled() []entry.AssetRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entry.AssetRef(nil), r.refs...)
}

type recordingListener struct {
	mu       sync.Mutex
	captured []entry.Entry
	changed  int
}

func (l *recordingListener) OnCaptured(e entry.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.captured = append(l.captured, e)
}

func (l *recordingListener) OnHistoryChanged() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changed++
}

func newStore(t *testing.T, limit int, opts ...Option) *Store {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.MaxHistoryItems = limit
	return New(config.Static(cfg), opts...)
}

var seq int

func text(s string) entry.Entry {
	seq++
	return entry.Entry{
		ID:        fmt.Sprintf("%026d", seq),
		Kind:      entry.KindText,
		Text:      s,
		Preview:   s,
		SizeBytes: int64(len(s)),
		CreatedAt: time.Date(2026, 1, 1, 0, 0, seq, 0, time.UTC),
	}
}

func texts(entries []entry.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

// Scenario A: a repeated capture is suppressed and is not a touch.
func TestInsert_DuplicateOfHeadSuppressed(t *testing.T) {
	s := newStore(t, 10)
	l := &recordingListener{}
	s.Subscribe(l)

	require.True(t, s.Insert(text("hello")))
	require.False(t, s.Insert(text("hello")))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 0, snap[0].UsageCount)
	assert.Len(t, l.captured, 1)
	assert.Equal(t, 1, l.changed)
}

func TestInsert_DedupOnlyAgainstHead(t *testing.T) {
	s := newStore(t, 10)

	require.True(t, s.Insert(text("a")))
	require.True(t, s.Insert(text("b")))
	require.True(t, s.Insert(text("a")))

	assert.Equal(t, []string{"a", "b", "a"}, texts(s.Snapshot()))
}

// Scenario B: the cap evicts from the tail and schedules the evicted assets.
func TestInsert_CapEvictsTail(t *testing.T) {
	r := &recordingReclaimer{}
	s := newStore(t, 2, WithReclaimer(r))

	a := text("A")
	a.Assets = []entry.AssetRef{{Role: entry.RoleImage, Path: "/assets/images/a.png"}}
	require.True(t, s.Insert(a))
	require.True(t, s.Insert(text("B")))
	require.True(t, s.Insert(text("C")))

	assert.Equal(t, []string{"C", "B"}, texts(s.Snapshot()))
	assert.Equal(t, a.Assets, r.scheduled())
}

func TestInsert_CapInvariant(t *testing.T) {
	const limit = 5
	s := newStore(t, limit)
	var survivors []string
	inputs := []string{"1", "1", "2", "3", "3", "4", "5", "6", "7", "7", "8"}
	for _, in := range inputs {
		if s.Insert(text(in)) {
			survivors = append([]string{in}, survivors...)
		}
		want := survivors
		if len(want) > limit {
			want = want[:limit]
		}
		require.Equal(t, want, texts(s.Snapshot()))
	}
}

func TestInsert_UnlimitedWhenNegative(t *testing.T) {
	s := newStore(t, -1)
	for i := 0; i < 50; i++ {
		s.Insert(text(fmt.Sprint(i)))
	}
	assert.Equal(t, 50, s.Len())
}

func TestTouch_DoesNotReorder(t *testing.T) {
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	s := newStore(t, 10, WithClock(func() time.Time { return now }))
	for _, v := range []string{"a", "b", "c"} {
		s.Insert(text(v))
	}
	before := s.Snapshot()

	require.True(t, s.Touch(before[2].ID))
	require.True(t, s.Touch(before[2].ID))

	after := s.Snapshot()
	assert.Equal(t, texts(before), texts(after))
	assert.Equal(t, 2, after[2].UsageCount)
	require.NotNil(t, after[2].LastUsedAt)
	assert.Equal(t, now, *after[2].LastUsedAt)
}

func TestTouch_AbsentIsNoop(t *testing.T) {
	s := newStore(t, 10)
	l := &recordingListener{}
	s.Subscribe(l)

	assert.False(t, s.Touch("missing"))
	assert.Equal(t, 0, l.changed)
}

func TestSnapshot_IsolatedFromLaterMutation(t *testing.T) {
	s := newStore(t, 10)
	s.Insert(text("a"))
	snap := s.Snapshot()

	s.SetTags(snap[0].ID, []string{"work"})
	s.Touch(snap[0].ID)
	snap[0].Text = "mutated by caller"

	assert.Nil(t, snap[0].Tags)
	assert.Equal(t, 0, snap[0].UsageCount)
	got, ok := s.Get(snap[0].ID)
	require.True(t, ok)
	assert.Equal(t, "a", got.Text)
	assert.Equal(t, []string{"work"}, got.Tags)
}

func TestSetFavoriteAndTags(t *testing.T) {
	s := newStore(t, 10)
	e := text("a")
	s.Insert(e)

	require.True(t, s.SetFavorite(e.ID, true))
	require.True(t, s.SetTags(e.ID, []string{" work", "Work", "home"}))
	require.False(t, s.SetFavorite("missing", true))

	got, _ := s.Get(e.ID)
	assert.True(t, got.Favorite)
	assert.Equal(t, []string{"work", "home"}, got.Tags)
}

func TestRemove_Idempotent(t *testing.T) {
	r := &recordingReclaimer{}
	s := newStore(t, 10, WithReclaimer(r))
	l := &recordingListener{}
	s.Subscribe(l)
	e := text("a")
	e.Assets = []entry.AssetRef{{Role: entry.RoleThumbnail, Path: "/p.png"}}
	s.Insert(e)

	require.True(t, s.Remove(e.ID))
	require.False(t, s.Remove(e.ID))

	assert.Equal(t, 0, s.Len())
	assert.Len(t, r.scheduled(), 1)
	assert.Equal(t, 2, l.changed) // insert + first remove
}

func TestRemoveMany_SingleNotification(t *testing.T) {
	s := newStore(t, 10)
	a, b, c := text("a"), text("b"), text("c")
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)
	l := &recordingListener{}
	s.Subscribe(l)

	n := s.RemoveMany([]string{a.ID, c.ID, "missing"})

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b"}, texts(s.Snapshot()))
	assert.Equal(t, 1, l.changed)
}

func TestClear(t *testing.T) {
	r := &recordingReclaimer{}
	s := newStore(t, 10, WithReclaimer(r))
	for i, v := range []string{"a", "b"} {
		e := text(v)
		e.Assets = []entry.AssetRef{{Role: entry.RoleImage, Path: fmt.Sprintf("/%d.png", i)}}
		s.Insert(e)
	}

	assert.Equal(t, 2, s.Clear())
	assert.Equal(t, 0, s.Len())
	assert.Len(t, r.scheduled(), 2)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := newStore(t, 10)
	l := &recordingListener{}
	unsubscribe := s.Subscribe(l)

	s.Insert(text("a"))
	unsubscribe()
	s.Insert(text("b"))

	assert.Len(t, l.captured, 1)
	assert.Equal(t, "a", l.captured[0].Text)
}

func TestReloadValidate_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "img.png")
	require.NoError(t, os.WriteFile(imgPath, []byte("png"), 0600))
	used := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	src := newStore(t, 10)
	img := entry.Entry{
		ID: "IMG", Kind: entry.KindImage, Preview: "Image 1x1", SizeBytes: 3,
		Image:  &entry.ImageMeta{Path: imgPath, Width: 1, Height: 1, Format: "png"},
		Assets: []entry.AssetRef{{Role: entry.RoleImage, Path: imgPath}},
	}
	src.Insert(img)
	files := entry.Entry{ID: "FILES", Kind: entry.KindFileList, Files: &entry.FileListMeta{Paths: []string{dir}, Directories: 1}}
	src.Insert(files)
	rich := text("hello")
	rich.Kind = entry.KindRichText
	rich.Formatted = "<b>hello</b>"
	rich.Favorite = true
	rich.Tags = []string{"greeting"}
	rich.UsageCount = 3
	rich.LastUsedAt = &used
	src.Insert(rich)

	dst := newStore(t, 10)
	n := dst.ReloadValidate(src.Snapshot())

	assert.Equal(t, 3, n)
	assert.Equal(t, src.Snapshot(), dst.Snapshot())
}

func TestReloadValidate_DropsInvalidAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	s := newStore(t, 10)

	keep := text("keep")
	gone := entry.Entry{ID: "GONE", Kind: entry.KindImage, Image: &entry.ImageMeta{Path: filepath.Join(dir, "missing.png")}}
	noAsset := entry.Entry{ID: "NOASSET", Kind: entry.KindImage, Image: &entry.ImageMeta{Width: 2, Height: 2}}
	partial := entry.Entry{ID: "PARTIAL", Kind: entry.KindFileList, Files: &entry.FileListMeta{Paths: []string{filepath.Join(dir, "x"), dir}}}
	none := entry.Entry{ID: "NONE", Kind: entry.KindFileList, Files: &entry.FileListMeta{Paths: []string{filepath.Join(dir, "x")}}}
	dup := keep

	n := s.ReloadValidate([]entry.Entry{keep, gone, noAsset, partial, none, dup})

	assert.Equal(t, 3, n)
	ids := []string{}
	for _, e := range s.Snapshot() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{keep.ID, "NOASSET", "PARTIAL"}, ids)
}

func TestReloadValidate_EnforcesCap(t *testing.T) {
	r := &recordingReclaimer{}
	s := newStore(t, 2, WithReclaimer(r))
	c := text("c")
	c.Assets = []entry.AssetRef{{Role: entry.RoleImage, Path: "/c.png"}}

	s.ReloadValidate([]entry.Entry{text("a"), text("b"), c})

	assert.Equal(t, []string{"a", "b"}, texts(s.Snapshot()))
	assert.Equal(t, c.Assets, r.scheduled())
}

func TestConcurrentAccess(t *testing.T) {
	s := newStore(t, 50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e := entry.Entry{ID: fmt.Sprintf("w%d-%d", w, i), Kind: entry.KindText, Text: fmt.Sprintf("%d-%d", w, i)}
				s.Insert(e)
				s.Touch(e.ID)
				_ = s.Snapshot()
				if i%10 == 0 {
					s.Remove(e.ID)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 50)
}

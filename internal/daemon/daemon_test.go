package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/klip/internal/classify"
	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/entry"
)

type fakeHost struct {
	mu      sync.Mutex
	payload classify.Payload
	written []classify.Payload
	signals chan struct{}
}

func newFakeHost() *fakeHost {
	return &fakeHost{signals: make(chan struct{}, 4)}
}

func (h *fakeHost) Name() string { return "fake" }

func (h *fakeHost) Read(context.Context) (classify.Payload, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payload, nil
}

func (h *fakeHost) Write(_ context.Context, p classify.Payload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.written = append(h.written, p)
	h.payload = p
	return nil
}

func (h *fakeHost) Changes(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.signals:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// copy simulates the user copying text.
func (h *fakeHost) copy(text string) {
	h.mu.Lock()
	h.payload = classify.Payload{Text: text}
	h.mu.Unlock()
	h.signals <- struct{}{}
}

type fakeRegistrar struct {
	mu      sync.Mutex
	enabled bool
}

func (r *fakeRegistrar) Enable() error  { r.mu.Lock(); r.enabled = true; r.mu.Unlock(); return nil }
func (r *fakeRegistrar) Disable() error { r.mu.Lock(); r.enabled = false; r.mu.Unlock(); return nil }
func (r *fakeRegistrar) IsEnabled() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled, nil
}

func openTest(t *testing.T, dir string, opts Options) *Runtime {
	t.Helper()
	opts.BaseDir = dir
	if opts.Clipboard == nil {
		opts.Clipboard = newFakeHost()
	}
	rt, err := Open(opts)
	require.NoError(t, err)
	return rt
}

func TestOpen_EmptyDataDir(t *testing.T) {
	dir := t.TempDir()
	rt := openTest(t, dir, Options{Version: "test"})

	require.Equal(t, 0, rt.History.Len())
	require.Equal(t, filepath.Join(dir, "exports"), rt.Paths().ExportsDir)
	require.False(t, rt.Paths().Restrict)
	require.True(t, rt.Deps().Paths.ExportsDir != "")
	require.NoError(t, rt.Close())

	_, err := os.Stat(filepath.Join(dir, "assets", "images"))
	require.NoError(t, err)
}

func TestClose_PersistsOfflineChanges(t *testing.T) {
	dir := t.TempDir()
	rt := openTest(t, dir, Options{})
	require.True(t, rt.History.Insert(entry.Entry{
		ID:        entry.NewID(),
		Kind:      entry.KindText,
		Text:      "kept across restarts",
		Preview:   "kept across restarts",
		SizeBytes: 20,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, rt.Close())

	rt = openTest(t, dir, Options{})
	defer rt.Close()
	snap := rt.History.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "kept across restarts", snap[0].Text)
}

func TestOpen_DropsStaleEntries(t *testing.T) {
	dir := t.TempDir()
	rt := openTest(t, dir, Options{})
	require.True(t, rt.History.Insert(entry.Entry{
		ID:        entry.NewID(),
		Kind:      entry.KindFileList,
		Files:     &entry.FileListMeta{Paths: []string{filepath.Join(dir, "gone.txt")}},
		Preview:   "gone.txt",
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, rt.Close())

	rt = openTest(t, dir, Options{})
	defer rt.Close()
	require.Equal(t, 0, rt.History.Len())
}

func TestRun_CapturesPersistsAndStops(t *testing.T) {
	dir := t.TempDir()
	host := newFakeHost()
	reg := &fakeRegistrar{}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"start_with_os": true}`), 0600))

	rt := openTest(t, dir, Options{Clipboard: host, Autostart: reg})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	require.Eventually(t, rt.Monitor.Running, 5*time.Second, 10*time.Millisecond)
	host.copy("captured by the daemon")
	require.Eventually(t, func() bool { return rt.History.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	on, _ := reg.IsEnabled()
	require.True(t, on, "start_with_os reconciled on start")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not stop")
	}
	require.NoError(t, rt.Close())

	rt = openTest(t, dir, Options{})
	defer rt.Close()
	snap := rt.History.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "captured by the daemon", snap[0].Text)
}

func TestMCPServer_HonorsDisabledTypes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("disabled_types: [capture]\n"), 0600))

	rt := openTest(t, dir, Options{})
	defer rt.Close()

	tools := rt.MCPServer().ListTools()
	require.Len(t, tools, 11)
	_, ok := tools["capture_toggle"]
	require.False(t, ok)
}

func TestOnReload_CaptureSettingOnlyAppliesOnChange(t *testing.T) {
	rt := openTest(t, t.TempDir(), Options{})
	defer rt.Close()
	require.True(t, rt.Monitor.Enabled())

	off := config.DefaultConfig()
	off.DisableCapture = true
	rt.onReload(off)
	require.False(t, rt.Monitor.Enabled())

	// A runtime toggle survives reloads that leave the setting alone.
	rt.Monitor.SetEnabled(true)
	rt.onReload(off)
	require.True(t, rt.Monitor.Enabled())

	rt.onReload(config.DefaultConfig())
	require.True(t, rt.Monitor.Enabled())
}

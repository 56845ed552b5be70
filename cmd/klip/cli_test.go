package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/klip/internal/classify"
	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/daemon"
	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/ops"
)

// fakeClipboard records writes and never signals a change.
type fakeClipboard struct {
	mu      sync.Mutex
	written []classify.Payload
}

func (f *fakeClipboard) Name() string { return "fake" }

func (f *fakeClipboard) Read(context.Context) (classify.Payload, error) {
	return classify.Payload{}, nil
}

func (f *fakeClipboard) Write(_ context.Context, p classify.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, p)
	return nil
}

func (f *fakeClipboard) Changes(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

type fakeRegistrar struct{ enabled bool }

func (r *fakeRegistrar) Enable() error            { r.enabled = true; return nil }
func (r *fakeRegistrar) Disable() error           { r.enabled = false; return nil }
func (r *fakeRegistrar) IsEnabled() (bool, error) { return r.enabled, nil }

type testEnv struct {
	rt   *daemon.Runtime
	clip *fakeClipboard
	reg  *fakeRegistrar
	dir  string
}

// setupTest opens a runtime over a temporary data directory.
func setupTest(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{clip: &fakeClipboard{}, reg: &fakeRegistrar{}, dir: t.TempDir()}
	rt, err := daemon.Open(daemon.Options{
		BaseDir:   env.dir,
		Version:   "test",
		Clipboard: env.clip,
		Autostart: env.reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	env.rt = rt
	return env
}

// seedText inserts text entries; the last one ends up newest.
func (e *testEnv) seedText(t *testing.T, texts ...string) []string {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]string, len(texts))
	for i, text := range texts {
		ids[i] = entry.NewID()
		require.True(t, e.rt.History.Insert(entry.Entry{
			ID:        ids[i],
			Kind:      entry.KindText,
			Text:      text,
			Preview:   text,
			SizeBytes: int64(len(text)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return ids
}

// runCLI runs the app with args and returns what it wrote to stdout.
func (e *testEnv) runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(&buf, r)
		close(done)
	}()

	runErr := newCLIApp(e.rt).Run(append([]string{"klip"}, args...))

	w.Close()
	<-done
	os.Stdout = oldStdout
	return buf.String(), runErr
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), "output: %s", out)
	return v
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single tag", "foo", []string{"foo"}},
		{"multiple tags", "foo,bar,baz", []string{"foo", "bar", "baz"}},
		{"tags with spaces", " foo , bar , baz ", []string{"foo", "bar", "baz"}},
		{"empty tags filtered", "foo,,bar,", []string{"foo", "bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, parseTags(tt.input))
		})
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    time.Duration
		expectError bool
	}{
		{name: "days", input: "7d", expected: 7 * 24 * time.Hour},
		{name: "zero days", input: "0d", expected: 0},
		{name: "hours", input: "12h", expected: 12 * time.Hour},
		{name: "minutes", input: "90m", expected: 90 * time.Minute},
		{name: "negative days", input: "-7d", expectError: true},
		{name: "negative duration", input: "-1h", expectError: true},
		{name: "no unit", input: "7", expectError: true},
		{name: "invalid number", input: "abcd", expectError: true},
		{name: "empty string", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAge(tt.input)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestParseTimeOrAge(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	got, err := parseTimeOrAge("2026-05-01T08:30:00Z", now)
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)))

	got, err = parseTimeOrAge("2026-05-01", now)
	require.NoError(t, err)
	require.Equal(t, 2026, got.Year())
	require.Equal(t, time.May, got.Month())
	require.Equal(t, 1, got.Day())

	got, err = parseTimeOrAge("2d", now)
	require.NoError(t, err)
	require.True(t, got.Equal(now.Add(-48*time.Hour)))

	_, err = parseTimeOrAge("last tuesday", now)
	require.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	require.Equal(t, "info", logLevel(cfg, []string{"klip"}))
	require.Equal(t, "info", logLevel(cfg, []string{"klip", "daemon"}))
	require.Equal(t, "warn", logLevel(cfg, []string{"klip", "list"}))

	cfg.LogLevel = "debug"
	require.Equal(t, "debug", logLevel(cfg, []string{"klip", "list"}))
}

func TestCLIListAndGet(t *testing.T) {
	env := setupTest(t)
	ids := env.seedText(t, "first", "second", "third")

	out, err := env.runCLI(t, "list", "--limit", "2")
	require.NoError(t, err)
	list := decode[ops.ListOutput](t, out)
	require.Len(t, list.Items, 2)
	require.Equal(t, ids[2], list.Items[0].ID)
	require.Equal(t, 3, list.Pagination.Total)
	require.True(t, list.Pagination.HasMore)

	out, err = env.runCLI(t, "get", ids[0])
	require.NoError(t, err)
	rec := decode[ops.Record](t, out)
	require.Equal(t, "first", rec.Text)
	require.Equal(t, entry.KindText, rec.Kind)
}

func TestCLISearch(t *testing.T) {
	env := setupTest(t)
	env.seedText(t, "deploy the staging cluster", "lunch order", "deploy prod")

	out, err := env.runCLI(t, "search", "--sort", "date_desc", "deploy")
	require.NoError(t, err)
	res := decode[ops.SearchOutput](t, out)
	require.Len(t, res.Items, 2)
	require.Equal(t, "deploy prod", res.Items[0].Preview)

	out, err = env.runCLI(t, "search", "--since", "1m")
	require.NoError(t, err)
	res = decode[ops.SearchOutput](t, out)
	require.Empty(t, res.Items, "seeded entries are older than a minute")

	_, err = env.runCLI(t, "search", "--since", "someday", "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLISuggest(t *testing.T) {
	env := setupTest(t)
	env.seedText(t, "kubernetes kubectl")

	out, err := env.runCLI(t, "suggest", "kub")
	require.NoError(t, err)
	res := decode[ops.SuggestOutput](t, out)
	require.Contains(t, res.Suggestions, "kubectl")

	_, err = env.runCLI(t, "suggest")
	require.Error(t, err)
}

func TestCLIPaste(t *testing.T) {
	env := setupTest(t)
	ids := env.seedText(t, "paste me", "newer")

	out, err := env.runCLI(t, "paste", ids[0])
	require.NoError(t, err)
	res := decode[ops.PasteOutput](t, out)
	require.True(t, res.Pasted)

	env.clip.mu.Lock()
	require.Len(t, env.clip.written, 1)
	require.Equal(t, "paste me", env.clip.written[0].Text)
	env.clip.mu.Unlock()

	e, ok := env.rt.History.Get(ids[0])
	require.True(t, ok)
	require.Equal(t, 1, e.UsageCount)
}

func TestCLIDeleteAndClear(t *testing.T) {
	env := setupTest(t)
	ids := env.seedText(t, "a", "b", "c")

	out, err := env.runCLI(t, "delete", ids[0], "missing-id")
	require.NoError(t, err)
	del := decode[ops.DeleteOutput](t, out)
	require.Equal(t, 1, del.Deleted)
	require.Equal(t, []string{"missing-id"}, del.Missing)

	_, err = env.runCLI(t, "clear")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[INVALID_REQUEST]")
	require.Equal(t, 2, env.rt.History.Len())

	out, err = env.runCLI(t, "clear", "--confirm")
	require.NoError(t, err)
	require.Equal(t, 2, decode[ops.ClearOutput](t, out).Cleared)
	require.Equal(t, 0, env.rt.History.Len())
}

func TestCLIFavoriteAndTag(t *testing.T) {
	env := setupTest(t)
	ids := env.seedText(t, "keep")

	out, err := env.runCLI(t, "favorite", ids[0])
	require.NoError(t, err)
	require.True(t, decode[ops.SummaryItem](t, out).Favorite)

	out, err = env.runCLI(t, "favorite", "--off", ids[0])
	require.NoError(t, err)
	require.False(t, decode[ops.SummaryItem](t, out).Favorite)

	out, err = env.runCLI(t, "tag", "--tags", "work,urgent", ids[0])
	require.NoError(t, err)
	require.Equal(t, []string{"work", "urgent"}, decode[ops.SummaryItem](t, out).Tags)

	out, err = env.runCLI(t, "tag", "--mode", "remove", "--tags", "urgent", ids[0])
	require.NoError(t, err)
	require.Equal(t, []string{"work"}, decode[ops.SummaryItem](t, out).Tags)
}

func TestCLISweep(t *testing.T) {
	env := setupTest(t)
	env.seedText(t, "a", "b")

	out, err := env.runCLI(t, "sweep")
	require.NoError(t, err)
	require.Equal(t, 2, decode[ops.SweepOutput](t, out).Remaining)
}

func TestCLIExportImport(t *testing.T) {
	src := setupTest(t)
	src.seedText(t, "one", "two")
	exportPath := filepath.Join(t.TempDir(), "history.jsonl")

	out, err := src.runCLI(t, "export", "--path", exportPath)
	require.NoError(t, err)
	exp := decode[ops.ExportOutput](t, out)
	require.Equal(t, 2, exp.Count)
	require.Equal(t, exportPath, exp.Path)

	dst := setupTest(t)
	out, err = dst.runCLI(t, "import", "--path", exportPath)
	require.NoError(t, err)
	imp := decode[ops.ImportOutput](t, out)
	require.Equal(t, 2, imp.Imported)
	require.Equal(t, 2, dst.rt.History.Len())

	// Importing again skips entries that already exist.
	out, err = dst.runCLI(t, "import", "--path", exportPath)
	require.NoError(t, err)
	require.Equal(t, 2, decode[ops.ImportOutput](t, out).Skipped)

	_, err = dst.runCLI(t, "import", "--path", filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "[FILE_NOT_FOUND]")
}

func TestCLICaptureWritesConfig(t *testing.T) {
	env := setupTest(t)

	_, err := env.runCLI(t, "capture", "off")
	require.NoError(t, err)
	cfg, err := config.Load(env.dir)
	require.NoError(t, err)
	require.True(t, cfg.DisableCapture)

	_, err = env.runCLI(t, "capture", "on")
	require.NoError(t, err)
	cfg, err = config.Load(env.dir)
	require.NoError(t, err)
	require.False(t, cfg.DisableCapture)
}

func TestCLIStartup(t *testing.T) {
	env := setupTest(t)

	out, err := env.runCLI(t, "startup", "enable")
	require.NoError(t, err)
	require.Contains(t, out, `"changed": true`)
	require.True(t, env.reg.enabled)

	cfg, err := config.Load(env.dir)
	require.NoError(t, err)
	require.True(t, cfg.StartWithOS, "the setting is persisted so the daemon keeps it")

	out, err = env.runCLI(t, "startup", "status")
	require.NoError(t, err)
	require.Contains(t, out, `"registered": true`)

	_, err = env.runCLI(t, "startup", "disable")
	require.NoError(t, err)
	require.False(t, env.reg.enabled)
}

func TestCLIErrorHandling(t *testing.T) {
	env := setupTest(t)

	_, err := env.runCLI(t, "get", "no-such-id")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[NOT_FOUND]")

	_, err = env.runCLI(t, "get")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[INVALID_REQUEST]")

	_, err = env.runCLI(t, "list", "--kind", "video")
	require.Error(t, err)
	require.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestIsCLIMode(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"klip"}, false},
		{"daemon", []string{"klip", "daemon"}, true},
		{"list", []string{"klip", "list"}, true},
		{"startup", []string{"klip", "startup", "status"}, true},
		{"help flag", []string{"klip", "--help"}, true},
		{"version flag", []string{"klip", "-v"}, true},
		{"unknown", []string{"klip", "frobnicate"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			require.Equal(t, tt.expected, isCLIMode())
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"klip"}, false},
		{"help", []string{"klip", "help"}, true},
		{"-h", []string{"klip", "-h"}, true},
		{"--version", []string{"klip", "--version"}, true},
		{"command", []string{"klip", "list"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			require.Equal(t, tt.expected, isHelpOrVersion())
		})
	}
}

func TestHelpRunsWithoutRuntime(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := newCLIApp(nil).Run([]string{"klip", "--help"})

	w.Close()
	os.Stdout = oldStdout
	out, _ := io.ReadAll(r)
	require.NoError(t, runErr)
	require.True(t, strings.Contains(string(out), "Clipboard history manager"))
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxHistoryItems != DefaultMaxHistoryItems {
		t.Fatalf("MaxHistoryItems = %d, want %d", cfg.MaxHistoryItems, DefaultMaxHistoryItems)
	}
	if cfg.PasteCooldown() != 500*time.Millisecond {
		t.Fatalf("PasteCooldown() = %v, want 500ms", cfg.PasteCooldown())
	}
	if cfg.SweepInterval() != 6*time.Hour {
		t.Fatalf("SweepInterval() = %v, want 6h", cfg.SweepInterval())
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"max_history_items": 50, "retention_days": 7}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxHistoryItems != 50 {
		t.Fatalf("MaxHistoryItems = %d, want %d", cfg.MaxHistoryItems, 50)
	}
	if cfg.Retention() != 7*24*time.Hour {
		t.Fatalf("Retention() = %v, want 168h", cfg.Retention())
	}
	// Untouched keys keep defaults
	if cfg.ThumbnailSize != DefaultThumbnailSize {
		t.Fatalf("ThumbnailSize = %d, want %d", cfg.ThumbnailSize, DefaultThumbnailSize)
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	yml := "max_file_size_mb: 12\nexcluded_extensions:\n  - BAT\n  - .iso\ndisable_capture: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yml), 0600))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	require.Equal(t, 12, cfg.MaxFileSizeMB)
	require.Equal(t, int64(12*1024*1024), cfg.MaxFileBytes())
	require.True(t, cfg.DisableCapture)
	require.True(t, cfg.IsExcludedExtension(".bat"))
	require.True(t, cfg.IsExcludedExtension(".ISO"))
	require.True(t, cfg.IsExcludedExtension(".exe"), "defaults survive the merge")
}

func TestLoad_JSONTakesPrecedenceOverYAML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("preview_chars: 10\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{"preview_chars": 20}`), 0600))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.PreviewChars)
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["history_clear", "history_delete"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "history_clear" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "history_clear")
	}
}

func TestHistoryCapAndRetention_Negative(t *testing.T) {
	cfg := Merge(DefaultConfig(), &Config{MaxHistoryItems: -1, RetentionDays: -1})

	if cfg.HistoryCap() != 0 {
		t.Errorf("HistoryCap() = %d, want 0 (unlimited)", cfg.HistoryCap())
	}
	if cfg.Retention() != 0 {
		t.Errorf("Retention() = %v, want 0 (disabled)", cfg.Retention())
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{MaxHistoryItems: 1000, MetricsAddr: "127.0.0.1:9464"}
	overlay := &Config{MaxHistoryItems: 200, WebAddr: "127.0.0.1:7717"}

	result := Merge(base, overlay)
	if result.MaxHistoryItems != 200 {
		t.Errorf("MaxHistoryItems = %d, want 200", result.MaxHistoryItems)
	}
	if result.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("MetricsAddr = %q, want base value", result.MetricsAddr)
	}
	if result.WebAddr != "127.0.0.1:7717" {
		t.Errorf("WebAddr = %q, want overlay value", result.WebAddr)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{StartWithOS: true}, &Config{DisableCapture: true})
	if !result.StartWithOS || !result.DisableCapture {
		t.Errorf("booleans = %v/%v, want true/true", result.StartWithOS, result.DisableCapture)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"history_clear", " history_delete "}}
	overlay := &Config{DisabledTools: []string{"history_delete", "capture_toggle"}}

	result := Merge(base, overlay)
	require.Equal(t, []string{"history_clear", "history_delete", "capture_toggle"}, result.DisabledTools)
}

func TestHolder_SetAndCurrent(t *testing.T) {
	h := NewHolder(nil)
	require.Equal(t, DefaultMaxHistoryItems, h.Current().MaxHistoryItems)

	next := DefaultConfig()
	next.MaxHistoryItems = 3
	h.Set(next)
	require.Equal(t, 3, h.Current().MaxHistoryItems)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{"max_history_items": 10}`), 0600))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	h := NewHolder(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, tmpDir, h, nil, func(c *Config) { reloaded <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{"max_history_items": 25}`), 0600))

	select {
	case c := <-reloaded:
		require.Equal(t, 25, c.MaxHistoryItems)
		require.Equal(t, 25, h.Current().MaxHistoryItems)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestUpdate_WritesOverlayOnly(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{"preview_chars": 80}`), 0600))

	require.NoError(t, Update(tmpDir, func(c *Config) { c.StartWithOS = true }))

	data, err := os.ReadFile(filepath.Join(tmpDir, "config.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"start_with_os": true`)
	require.NotContains(t, string(data), "max_history_items", "defaults stay implicit")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	require.True(t, cfg.StartWithOS)
	require.Equal(t, 80, cfg.PreviewChars)
}

func TestUpdate_KeepsYAMLFormat(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("retention_days: 7\n"), 0600))

	require.NoError(t, Update(tmpDir, func(c *Config) { c.StartWithOS = true }))

	_, err := os.Stat(filepath.Join(tmpDir, "config.json"))
	require.True(t, os.IsNotExist(err))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	require.True(t, cfg.StartWithOS)
	require.Equal(t, 7, cfg.RetentionDays)
}

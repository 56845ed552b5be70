package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults
const (
	DefaultMaxHistoryItems    = 1000
	DefaultMaxFileSizeMB      = 5
	DefaultRetentionDays      = 30
	DefaultThumbnailSize      = 150
	DefaultPreviewChars       = 500
	DefaultSweepIntervalHours = 6
	DefaultPasteCooldownMS    = 500
)

// DefaultExcludedExtensions lists file types never captured from a copied file list:
// executables, installers, libraries, system, temp and log files.
var DefaultExcludedExtensions = []string{
	".exe", ".msi", ".dll", ".sys", ".so", ".dylib", ".tmp", ".log",
}

// Config holds application configuration.
type Config struct {
	// MaxHistoryItems caps the history length. Negative means unlimited.
	MaxHistoryItems int `json:"max_history_items,omitempty" yaml:"max_history_items,omitempty"`

	// MaxFileSizeMB is the cumulative size ceiling for a captured file list.
	MaxFileSizeMB int `json:"max_file_size_mb,omitempty" yaml:"max_file_size_mb,omitempty"`

	// RetentionDays removes non-favorite entries older than this during sweeps.
	// Negative disables age-based retention.
	RetentionDays int `json:"retention_days,omitempty" yaml:"retention_days,omitempty"`

	// ThumbnailSize is the maximum edge in pixels of image thumbnails.
	ThumbnailSize int `json:"thumbnail_size,omitempty" yaml:"thumbnail_size,omitempty"`

	// PreviewChars is the character budget of an entry's searchable preview.
	PreviewChars int `json:"preview_chars,omitempty" yaml:"preview_chars,omitempty"`

	// ExcludedExtensions is merged with the defaults; matching is case-insensitive.
	ExcludedExtensions []string `json:"excluded_extensions,omitempty" yaml:"excluded_extensions,omitempty"`

	// DisableCapture starts the monitor in the Idle state.
	DisableCapture bool `json:"disable_capture,omitempty" yaml:"disable_capture,omitempty"`

	// StartWithOS records whether klip should be registered to run at login.
	StartWithOS bool `json:"start_with_os,omitempty" yaml:"start_with_os,omitempty"`

	SweepIntervalHours int `json:"sweep_interval_hours,omitempty" yaml:"sweep_interval_hours,omitempty"`
	PasteCooldownMS    int `json:"paste_cooldown_ms,omitempty" yaml:"paste_cooldown_ms,omitempty"`

	// MetricsAddr enables the Prometheus /metrics listener (e.g. "127.0.0.1:9464").
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	// MCPAddr enables the streamable HTTP MCP endpoint of the daemon.
	MCPAddr string `json:"mcp_addr,omitempty" yaml:"mcp_addr,omitempty"`

	// WebAddr enables the local history browser (e.g. "127.0.0.1:7717").
	WebAddr string `json:"web_addr,omitempty" yaml:"web_addr,omitempty"`

	LogLevel  string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogFormat string `json:"log_format,omitempty" yaml:"log_format,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "history", "capture".
	DisabledTypes []string `json:"disabled_types,omitempty" yaml:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxHistoryItems:    DefaultMaxHistoryItems,
		MaxFileSizeMB:      DefaultMaxFileSizeMB,
		RetentionDays:      DefaultRetentionDays,
		ThumbnailSize:      DefaultThumbnailSize,
		PreviewChars:       DefaultPreviewChars,
		ExcludedExtensions: append([]string(nil), DefaultExcludedExtensions...),
		SweepIntervalHours: DefaultSweepIntervalHours,
		PasteCooldownMS:    DefaultPasteCooldownMS,
		LogLevel:           "info",
		LogFormat:          "console",
	}
}

// HistoryCap returns the history cap, or 0 when unlimited.
func (c *Config) HistoryCap() int {
	if c.MaxHistoryItems < 0 {
		return 0
	}
	return c.MaxHistoryItems
}

// Retention returns the age-based retention window, or 0 when disabled.
func (c *Config) Retention() time.Duration {
	if c.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// MaxFileBytes returns the file-list size ceiling in bytes.
func (c *Config) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// SweepInterval returns the period between retention sweeps.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalHours) * time.Hour
}

// PasteCooldown returns how long capture stays suspended after a paste.
func (c *Config) PasteCooldown() time.Duration {
	return time.Duration(c.PasteCooldownMS) * time.Millisecond
}

// IsExcludedExtension reports whether ext (with leading dot) is denylisted.
func (c *Config) IsExcludedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	if ext == "" {
		return false
	}
	for _, e := range c.ExcludedExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Provider gives read-only access to the configuration in effect at call time.
type Provider interface {
	Current() *Config
}

// Holder is a Provider whose configuration can be swapped atomically (hot reload).
type Holder struct {
	cfg atomic.Pointer[Config]
}

// NewHolder creates a Holder initialized with cfg (defaults when nil).
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	h.cfg.Store(cfg)
	return h
}

// Current returns the configuration in effect. Callers must not mutate it.
func (h *Holder) Current() *Config {
	return h.cfg.Load()
}

// Set replaces the configuration in effect.
func (h *Holder) Set(cfg *Config) {
	h.cfg.Store(cfg)
}

// Static returns a Provider that always yields cfg.
func Static(cfg *Config) Provider {
	return NewHolder(cfg)
}

// Load loads configuration from baseDir/config.json, or baseDir/config.yaml when
// no JSON file exists. Returns default config if neither exists.
// The baseDir parameter allows tests to use t.TempDir().
func Load(baseDir string) (*Config, error) {
	return loadFile(Path(baseDir))
}

// Path returns the config file klip reads from baseDir.
func Path(baseDir string) string {
	jsonPath := filepath.Join(baseDir, "config.json")
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath
	}
	for _, name := range []string{"config.yaml", "config.yml"} {
		p := filepath.Join(baseDir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return jsonPath
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.MaxHistoryItems = pickInt(overlay.MaxHistoryItems, base.MaxHistoryItems)
	result.MaxFileSizeMB = pickInt(overlay.MaxFileSizeMB, base.MaxFileSizeMB)
	result.RetentionDays = pickInt(overlay.RetentionDays, base.RetentionDays)
	result.ThumbnailSize = pickInt(overlay.ThumbnailSize, base.ThumbnailSize)
	result.PreviewChars = pickInt(overlay.PreviewChars, base.PreviewChars)
	result.SweepIntervalHours = pickInt(overlay.SweepIntervalHours, base.SweepIntervalHours)
	result.PasteCooldownMS = pickInt(overlay.PasteCooldownMS, base.PasteCooldownMS)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.MetricsAddr = pickString(overlay.MetricsAddr, base.MetricsAddr)
	result.MCPAddr = pickString(overlay.MCPAddr, base.MCPAddr)
	result.WebAddr = pickString(overlay.WebAddr, base.WebAddr)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pickString(overlay.LogFormat, base.LogFormat)

	// Booleans: overlay wins if true, else base
	result.DisableCapture = base.DisableCapture || overlay.DisableCapture
	result.StartWithOS = base.StartWithOS || overlay.StartWithOS

	// Arrays: merge and deduplicate
	result.ExcludedExtensions = mergeStringSlice(base.ExcludedExtensions, normalizeExtensions(overlay.ExcludedExtensions))
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// normalizeExtensions lowercases extensions and adds the leading dot when missing.
func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// Update applies fn to the file-level settings in baseDir and writes them back
// in the file's own format. Defaults are not written out.
func Update(baseDir string, fn func(*Config)) error {
	path := Path(baseDir)
	cfg, err := loadFileRaw(path)
	if err != nil {
		return err
	}
	fn(cfg)

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

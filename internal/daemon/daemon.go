// Package daemon wires klip's components together and runs their loops.
package daemon

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/adrg/xdg"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/klip/internal/asset"
	"github.com/hpungsan/klip/internal/capture"
	"github.com/hpungsan/klip/internal/classify"
	"github.com/hpungsan/klip/internal/clipboard"
	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/db"
	"github.com/hpungsan/klip/internal/history"
	"github.com/hpungsan/klip/internal/logging"
	"github.com/hpungsan/klip/internal/mcp"
	"github.com/hpungsan/klip/internal/metrics"
	"github.com/hpungsan/klip/internal/ops"
	"github.com/hpungsan/klip/internal/startup"
	"github.com/hpungsan/klip/internal/sweep"
	"github.com/hpungsan/klip/internal/web"
)

// DefaultBaseDir is where klip keeps its database, assets, exports and config.
func DefaultBaseDir() string {
	return filepath.Join(xdg.DataHome, "klip")
}

// Options configures Open.
type Options struct {
	// BaseDir defaults to DefaultBaseDir().
	BaseDir string

	Version string

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Clipboard overrides host detection.
	Clipboard clipboard.Host

	// Autostart, when set, is reconciled with start_with_os on Run and reload.
	Autostart startup.Registrar
}

// Runtime owns every long-lived component of a klip process.
type Runtime struct {
	BaseDir string
	Config  *config.Holder
	DB      *sql.DB

	Assets    *asset.Store
	History   *history.Store
	Monitor   *capture.Monitor
	Sweeper   *sweep.Sweeper
	Persister *db.Persister

	version   string
	logger    *zap.Logger
	clip      clipboard.Host
	autostart startup.Registrar
	unsub     func()

	// captureOff tracks disable_capture so a reload only overrides a runtime
	// toggle when the file setting itself changed.
	captureOff atomic.Bool
}

// Open loads configuration and persisted history and builds the components.
// Nothing runs until Run; offline commands use the Runtime directly and Close it.
func Open(opts Options) (*Runtime, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	db.ConfigurePool(database, cfg)
	holder := config.NewHolder(cfg)

	assets, err := asset.New(filepath.Join(baseDir, "assets"), asset.WithLogger(logger.Named("asset")))
	if err != nil {
		database.Close()
		return nil, err
	}

	hist := history.New(holder,
		history.WithLogger(logger.Named("history")),
		history.WithReclaimer(assets),
	)

	entries, err := db.LoadEntries(context.Background(), database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	kept := hist.ReloadValidate(entries)
	if dropped := len(entries) - kept; dropped > 0 {
		logger.Info("dropped stale entries on load", zap.Int("dropped", dropped), zap.Int("kept", kept))
	}
	metrics.SetHistorySize(kept)

	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.Detect(logger.Named("clipboard"))
	}

	classifier := classify.New(holder, assets, classify.WithLogger(logger.Named("classify")))
	monitor := capture.New(clip, clip, classifier, hist, assets, holder, capture.WithLogger(logger.Named("capture")))
	sweeper := sweep.New(hist, assets, holder, sweep.WithLogger(logger.Named("sweep")))

	persister := db.NewPersister(database, hist, db.WithLogger(logger.Named("db")))
	unsub := hist.Subscribe(persister)

	rt := &Runtime{
		BaseDir:   baseDir,
		Config:    holder,
		DB:        database,
		Assets:    assets,
		History:   hist,
		Monitor:   monitor,
		Sweeper:   sweeper,
		Persister: persister,
		version:   opts.Version,
		logger:    logger,
		clip:      clip,
		autostart: opts.Autostart,
		unsub:     unsub,
	}
	rt.captureOff.Store(cfg.DisableCapture)
	return rt, nil
}

// Paths returns the unrestricted export/import policy used by the CLI.
func (r *Runtime) Paths() ops.PathPolicy {
	return ops.PathPolicy{ExportsDir: filepath.Join(r.BaseDir, "exports")}
}

// Autostart returns the login registration, or nil when none was configured.
func (r *Runtime) Autostart() startup.Registrar {
	return r.autostart
}

// Deps returns the collaborators MCP tools act on.
func (r *Runtime) Deps() mcp.Deps {
	return mcp.Deps{
		History: r.History,
		Paster:  r.Monitor,
		Capture: r.Monitor,
		Sweeper: r.Sweeper,
		Paths:   r.Paths(),
	}
}

// MCPServer builds an MCP server over this runtime using the current configuration.
func (r *Runtime) MCPServer() *server.MCPServer {
	cfg := r.Config.Current()
	for _, name := range mcp.ValidateDisabledTools(cfg.DisabledTools) {
		r.logger.Warn("unknown tool in disabled_tools", zap.String("tool", name))
	}
	for _, name := range mcp.ValidateDisabledTypes(cfg.DisabledTypes) {
		r.logger.Warn("unknown type in disabled_types", zap.String("type", name))
	}
	return mcp.NewServer(r.Deps(), cfg, r.version)
}

// Run starts capture, the sweeper, autosave, the asset reclaimer, config hot
// reload and any configured listeners, and blocks until ctx is done or one
// of them fails.
func (r *Runtime) Run(ctx context.Context) error {
	cfg := r.Config.Current()
	r.logger.Info("klip starting",
		zap.String("version", r.version),
		zap.String("data_dir", r.BaseDir),
		zap.String("clipboard", r.clip.Name()),
		zap.Int("entries", r.History.Len()),
	)
	r.reconcileAutostart(cfg)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return config.Watch(ctx, r.BaseDir, r.Config, r.logger.Named("config"), r.onReload)
	})
	g.Go(func() error { return r.Assets.Run(ctx) })
	g.Go(func() error { return r.Monitor.Run(ctx) })
	g.Go(func() error { return r.Sweeper.Run(ctx) })
	g.Go(func() error { return r.Persister.Run(ctx) })

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			r.logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			return metrics.Serve(ctx, cfg.MetricsAddr)
		})
	}
	if cfg.MCPAddr != "" {
		srv := r.MCPServer()
		g.Go(func() error { return mcp.ServeHTTP(ctx, srv, cfg.MCPAddr, r.logger.Named("mcp")) })
	}
	if cfg.WebAddr != "" {
		handler := web.NewHandler(r.History, r.version, r.logger.Named("web"))
		g.Go(func() error { return web.Serve(ctx, cfg.WebAddr, handler, r.logger.Named("web")) })
	}

	err := g.Wait()
	r.logger.Info("klip stopped")
	return err
}

// Close saves unsaved changes and closes the database.
func (r *Runtime) Close() error {
	if r.unsub != nil {
		r.unsub()
	}
	var saveErr error
	if r.Persister.Pending() {
		saveErr = r.Persister.Save(context.Background())
	}
	if err := r.DB.Close(); err != nil && saveErr == nil {
		return err
	}
	return saveErr
}

func (r *Runtime) onReload(cfg *config.Config) {
	logging.SetLevel(cfg.LogLevel)
	db.ConfigurePool(r.DB, cfg)
	r.reconcileAutostart(cfg)
	if r.captureOff.Swap(cfg.DisableCapture) != cfg.DisableCapture {
		r.Monitor.SetEnabled(!cfg.DisableCapture)
	}
	// A lower cap or shorter retention takes effect without waiting for the timer.
	r.Sweeper.Trigger()
}

func (r *Runtime) reconcileAutostart(cfg *config.Config) {
	if r.autostart == nil {
		return
	}
	changed, err := startup.Reconcile(r.autostart, cfg.StartWithOS)
	if err != nil {
		r.logger.Warn("autostart reconcile failed", zap.Error(err))
		return
	}
	if changed {
		r.logger.Info("autostart updated", zap.Bool("enabled", cfg.StartWithOS))
	}
}

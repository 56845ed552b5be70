package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/daemon"
	"github.com/hpungsan/klip/internal/logging"
	"github.com/hpungsan/klip/internal/mcp"
	"github.com/hpungsan/klip/internal/startup"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"daemon": true,
	"list": true, "get": true, "search": true, "suggest": true,
	"paste": true, "delete": true, "clear": true,
	"favorite": true, "tag": true, "sweep": true,
	"export": true, "import": true,
	"capture": true, "startup": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// dataDir honors KLIP_HOME before the XDG data directory.
func dataDir() string {
	if dir := os.Getenv("KLIP_HOME"); dir != "" {
		return dir
	}
	return daemon.DefaultBaseDir()
}

// logLevel keeps one-shot commands quiet unless debugging was asked for.
func logLevel(cfg *config.Config, args []string) string {
	if len(args) < 2 || args[1] == "daemon" || cfg.LogLevel == "debug" {
		return cfg.LogLevel
	}
	return "warn"
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _    _ _
  | | _| (_)_ __
  | |/ / | | '_ \
  |   <| | | |_) |
  |_|\_\_|_| .__/
           |_|

  Clipboard history manager

  Usage: klip <command> [options]
         klip daemon
         klip --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the data dir
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'klip --help' for usage.\n")
		os.Exit(1)
	}

	os.Exit(run())
}

// run opens the runtime and dispatches to CLI or MCP stdio mode. It returns
// the process exit code so deferred cleanup runs before os.Exit.
func run() int {
	baseDir := dataDir()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}
	if err := logging.Init(logging.Config{Level: logLevel(cfg, os.Args), Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize logging: %v\n", err)
		return 1
	}
	defer func() { _ = logging.Sync() }()

	var autostart startup.Registrar
	if exe, err := os.Executable(); err == nil {
		autostart = startup.NewAutostart(exe)
	}

	rt, err := daemon.Open(daemon.Options{
		BaseDir:   baseDir,
		Version:   Version,
		Logger:    logging.L(),
		Autostart: autostart,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		if err := rt.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to save history: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if isCLIMode() {
		app := newCLIApp(rt)
		if err := app.RunContext(ctx, os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	// MCP server mode (default): capture runs alongside the stdio session
	// and stops when the client closes stdin.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Run(gctx) })
	g.Go(func() error {
		defer stop()
		return mcp.Run(gctx, rt.MCPServer(), logging.Named("mcp"))
	})
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/klip/internal/config"
	"github.com/hpungsan/klip/internal/daemon"
	"github.com/hpungsan/klip/internal/errors"
	"github.com/hpungsan/klip/internal/ops"
	"github.com/hpungsan/klip/internal/startup"
)

// newCLIApp creates the CLI application with all commands.
// rt is nil when only help or version output is needed.
func newCLIApp(rt *daemon.Runtime) *cli.App {
	app := &cli.App{
		Name:    "klip",
		Usage:   "Clipboard history manager",
		Version: Version,
		Commands: []*cli.Command{
			daemonCmd(rt),
			listCmd(rt),
			getCmd(rt),
			searchCmd(rt),
			suggestCmd(rt),
			pasteCmd(rt),
			deleteCmd(rt),
			clearCmd(rt),
			favoriteCmd(rt),
			tagCmd(rt),
			sweepCmd(rt),
			exportCmd(rt),
			importCmd(rt),
			captureCmd(rt),
			startupCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// daemonCmd creates the daemon command.
func daemonCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "daemon",
		Usage: "Capture clipboard changes until interrupted",
		Action: func(c *cli.Context) error {
			if err := rt.Run(c.Context); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// listCmd creates the list command.
func listCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List history entries, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by kind: text|rich_text|image|file_list|unknown"},
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "Only favorites"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(rt.History, ops.ListInput{
				Kind:          c.String("kind"),
				FavoritesOnly: c.Bool("favorites"),
				Limit:         c.Int("limit"),
				Offset:        c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// getCmd creates the get command.
func getCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one entry in full",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Get(rt.History, ops.GetInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search history by content, kind, date, size and tags",
		ArgsUsage: "[query...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by kind"},
			&cli.StringFlag{Name: "since", Usage: "Only entries newer than a time (RFC 3339) or age (e.g., 2h, 7d)"},
			&cli.StringFlag{Name: "until", Usage: "Only entries older than a time (RFC 3339) or age"},
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "Only favorites"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags; any may match"},
			&cli.Int64Flag{Name: "min-size", Usage: "Minimum size in bytes"},
			&cli.Int64Flag{Name: "max-size", Usage: "Maximum size in bytes"},
			&cli.BoolFlag{Name: "regex", Aliases: []string{"r"}, Usage: "Treat the query as a regular expression"},
			&cli.BoolFlag{Name: "case-sensitive", Aliases: []string{"c"}, Usage: "Match case exactly"},
			&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Usage: "relevance|date_desc|date_asc|usage_desc|usage_asc|size_desc|size_asc|kind_then_date"},
			&cli.BoolFlag{Name: "highlight", Usage: "Mark matches in the returned preview"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			now := time.Now()
			input := ops.SearchInput{
				Query:         strings.Join(c.Args().Slice(), " "),
				Kind:          c.String("kind"),
				FavoritesOnly: c.Bool("favorites"),
				Tags:          parseTags(c.String("tags")),
				Regex:         c.Bool("regex"),
				CaseSensitive: c.Bool("case-sensitive"),
				Sort:          c.String("sort"),
				Highlight:     c.Bool("highlight"),
				Limit:         c.Int("limit"),
				Offset:        c.Int("offset"),
			}
			for _, bound := range []struct {
				flag string
				dst  **time.Time
			}{{"since", &input.Since}, {"until", &input.Until}} {
				if s := c.String(bound.flag); s != "" {
					t, err := parseTimeOrAge(s, now)
					if err != nil {
						return outputError(errors.NewInvalidRequest(fmt.Sprintf("--%s: %v", bound.flag, err)))
					}
					*bound.dst = &t
				}
			}
			if c.IsSet("min-size") {
				v := c.Int64("min-size")
				input.MinSize = &v
			}
			if c.IsSet("max-size") {
				v := c.Int64("max-size")
				input.MaxSize = &v
			}

			output, err := ops.Search(rt.History, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// suggestCmd creates the suggest command.
func suggestCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Complete a partial search term from recent history",
		ArgsUsage: "<partial>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum suggestions"},
		},
		Action: func(c *cli.Context) error {
			partial := c.Args().First()
			if strings.TrimSpace(partial) == "" {
				return outputError(errors.NewInvalidRequest("partial is required"))
			}
			output, err := ops.Suggest(rt.History, ops.SuggestInput{Partial: partial, Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// pasteCmd creates the paste command.
func pasteCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "paste",
		Usage:     "Put an entry back on the system clipboard",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Paste(c.Context, rt.History, rt.Monitor, ops.PasteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete entries and their image files",
		ArgsUsage: "<id> [id...]",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(rt.History, ops.DeleteInput{IDs: c.Args().Slice()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete the whole history",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "confirm", Usage: "Required; clearing cannot be undone"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Clear(rt.History, ops.ClearInput{Confirm: c.Bool("confirm")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// favoriteCmd creates the favorite command.
func favoriteCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "favorite",
		Usage:     "Mark an entry as a favorite",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "off", Usage: "Clear the favorite flag instead"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Favorite(rt.History, ops.FavoriteInput{
				ID:       c.Args().First(),
				Favorite: !c.Bool("off"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// tagCmd creates the tag command.
func tagCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:      "tag",
		Usage:     "Set, add or remove an entry's tags",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tags", Aliases: []string{"t"}, Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.TagModeSet), Usage: "set|add|remove"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Tag(rt.History, ops.TagInput{
				ID:   c.Args().First(),
				Tags: parseTags(c.String("tags")),
				Mode: ops.TagMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// sweepCmd creates the sweep command.
func sweepCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Apply retention and the history cap now",
		Action: func(c *cli.Context) error {
			output, err := ops.Sweep(c.Context, rt.History, rt.Sweeper)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export history to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: <data dir>/exports/klip-<timestamp>.jsonl)"},
			&cli.BoolFlag{Name: "favorites", Aliases: []string{"f"}, Usage: "Only favorites"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, rt.History, rt.Paths(), ops.ExportInput{
				Path:          c.String("path"),
				FavoritesOnly: c.Bool("favorites"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(rt *daemon.Runtime) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import history from a JSONL export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(rt.History, rt.Paths(), ops.ImportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// captureCmd creates the capture command. The setting is written to the
// config file, which a running daemon picks up on reload.
func captureCmd(rt *daemon.Runtime) *cli.Command {
	set := func(enabled bool) cli.ActionFunc {
		return func(*cli.Context) error {
			if err := config.Update(rt.BaseDir, func(c *config.Config) { c.DisableCapture = !enabled }); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(map[string]any{"enabled": enabled, "config": config.Path(rt.BaseDir)})
		}
	}
	return &cli.Command{
		Name:  "capture",
		Usage: "Turn clipboard capture on or off",
		Subcommands: []*cli.Command{
			{Name: "on", Usage: "Enable capture", Action: set(true)},
			{Name: "off", Usage: "Disable capture", Action: set(false)},
			{
				Name:  "status",
				Usage: "Show the configured capture setting",
				Action: func(*cli.Context) error {
					return outputJSON(map[string]any{
						"enabled": !rt.Config.Current().DisableCapture,
						"config":  config.Path(rt.BaseDir),
					})
				},
			},
		},
	}
}

// startupCmd creates the startup command.
func startupCmd(rt *daemon.Runtime) *cli.Command {
	set := func(enabled bool) cli.ActionFunc {
		return func(*cli.Context) error {
			if err := config.Update(rt.BaseDir, func(c *config.Config) { c.StartWithOS = enabled }); err != nil {
				return outputError(errors.NewInternal(err))
			}
			reg := rt.Autostart()
			if reg == nil {
				return outputError(errors.NewInvalidRequest("autostart is not available on this system"))
			}
			changed, err := startup.Reconcile(reg, enabled)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(map[string]any{"start_with_os": enabled, "changed": changed})
		}
	}
	return &cli.Command{
		Name:  "startup",
		Usage: "Launch the daemon at login",
		Subcommands: []*cli.Command{
			{Name: "enable", Usage: "Register the daemon to start at login", Action: set(true)},
			{Name: "disable", Usage: "Remove the login registration", Action: set(false)},
			{
				Name:  "status",
				Usage: "Show whether the daemon starts at login",
				Action: func(*cli.Context) error {
					registered := false
					if reg := rt.Autostart(); reg != nil {
						on, err := reg.IsEnabled()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						registered = on
					}
					return outputJSON(map[string]any{
						"start_with_os": rt.Config.Current().StartWithOS,
						"registered":    registered,
					})
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if kErr, ok := errors.As(err); ok {
		if kErr.Code == errors.ErrInternal {
			if detail, ok := kErr.Details["internal_error"].(string); ok && detail != "" {
				return cli.Exit(fmt.Sprintf("[%s] %s: %s", kErr.Code, kErr.Message, detail), 1)
			}
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", kErr.Code, kErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseTimeOrAge accepts an RFC 3339 timestamp, a date (2006-01-02), or an
// age such as "90m", "12h" or "7d" counted back from now.
func parseTimeOrAge(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	age, err := parseAge(s)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-age), nil
}

// parseAge parses a Go duration or a whole number of days ("7d").
func parseAge(s string) (time.Duration, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid age: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("age must be non-negative")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time or age: %s (use RFC 3339, 2006-01-02, 12h or 7d)", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("age must be non-negative")
	}
	return d, nil
}

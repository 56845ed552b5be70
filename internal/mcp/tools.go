package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var listToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List clipboard history, newest capture first. Returns compact summaries with pagination."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("kind", mcp.Description("Only entries of this kind"), mcp.Enum("text", "rich_text", "image", "file_list", "unknown")),
	mcp.WithBoolean("favorites_only", mcp.Description("Only favorite entries")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Entries to skip")),
)

var getToolDef = mcp.NewTool("history_get",
	mcp.WithDescription("Get the full content and metadata of one history entry."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID")),
)

var searchToolDef = mcp.NewTool("history_search",
	mcp.WithDescription("Search clipboard history. Filters are applied first; the query then ranks by relevance with favorite, usage and recency bonuses. An invalid regex falls back to a literal match."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("query", mcp.Description("Free-text query; all words are matched independently")),
	mcp.WithString("kind", mcp.Description("Only entries of this kind"), mcp.Enum("text", "rich_text", "image", "file_list", "unknown")),
	mcp.WithString("since", mcp.Description("RFC 3339 lower bound on capture time")),
	mcp.WithString("until", mcp.Description("RFC 3339 upper bound on capture time")),
	mcp.WithBoolean("favorites_only", mcp.Description("Only favorite entries")),
	mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Match entries carrying any of these tags")),
	mcp.WithNumber("min_size", mcp.Description("Minimum size in bytes")),
	mcp.WithNumber("max_size", mcp.Description("Maximum size in bytes")),
	mcp.WithBoolean("regex", mcp.Description("Treat query as a regular expression")),
	mcp.WithBoolean("case_sensitive", mcp.Description("Match case exactly")),
	mcp.WithString("sort", mcp.Description("Result order (default relevance with a query, date_desc without)"),
		mcp.Enum("date_desc", "date_asc", "usage_desc", "usage_asc", "size_desc", "size_asc", "kind_then_date", "relevance")),
	mcp.WithBoolean("highlight", mcp.Description("Include the preview with matches wrapped in **")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Results to skip")),
)

var suggestToolDef = mcp.NewTool("history_suggest",
	mcp.WithDescription("Complete a partial search term from words in recent history."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("partial", mcp.Required(), mcp.Description("Beginning of the word to complete")),
	mcp.WithNumber("limit", mcp.Description("Maximum suggestions (default 10)")),
)

var pasteToolDef = mcp.NewTool("history_paste",
	mcp.WithDescription("Put a history entry back on the system clipboard. Capture is suspended briefly so the paste is not recorded again."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID")),
)

var deleteToolDef = mcp.NewTool("history_delete",
	mcp.WithDescription("Delete history entries by ID. Their image assets are reclaimed."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithArray("ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Entry IDs")),
)

var clearToolDef = mcp.NewTool("history_clear",
	mcp.WithDescription("Delete every history entry, favorites included."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true")),
)

var favoriteToolDef = mcp.NewTool("history_favorite",
	mcp.WithDescription("Mark or unmark an entry as favorite. Favorites are exempt from age-based retention."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID")),
	mcp.WithBoolean("favorite", mcp.Required(), mcp.Description("New favorite state")),
)

var tagToolDef = mcp.NewTool("history_tag",
	mcp.WithDescription("Set, add or remove tags on an entry. Tags are trimmed and deduplicated case-insensitively."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Entry ID")),
	mcp.WithArray("tags", mcp.Required(), mcp.WithStringItems(), mcp.Description("Tags")),
	mcp.WithString("mode", mcp.Description("How to combine with existing tags (default set)"), mcp.Enum("set", "add", "remove")),
)

var sweepToolDef = mcp.NewTool("history_sweep",
	mcp.WithDescription("Run a retention sweep now: remove aged non-favorites, trim to the history cap, drop entries whose files are gone."),
	mcp.WithDestructiveHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("history_export",
	mcp.WithDescription("Export history to a JSONL file in the exports directory."),
	mcp.WithString("path", mcp.Description("Target .jsonl path directly inside the exports directory (default: generated name)")),
	mcp.WithBoolean("favorites_only", mcp.Description("Only export favorites")),
)

var captureStatusToolDef = mcp.NewTool("capture_status",
	mcp.WithDescription("Report whether clipboard changes are being recorded."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var captureToggleToolDef = mcp.NewTool("capture_toggle",
	mcp.WithDescription("Enable or disable clipboard capture."),
	mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("New capture state")),
)

package web

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/hpungsan/klip/internal/entry"
	"github.com/hpungsan/klip/internal/errors"
	"github.com/hpungsan/klip/internal/ops"
)

// Handlers contains HTTP route handlers for the history browser.
type Handlers struct {
	history  ops.History
	renderer *Renderer
}

// HandleList handles GET /history, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Kind:          r.URL.Query().Get("kind"),
		FavoritesOnly: parseBoolParam(r, "favorites"),
		Limit:         parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:        parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(h.history, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	nav := "history"
	if input.FavoritesOnly {
		nav = "favorites"
	}
	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     nav,
		},
		Items:         result.Items,
		Pagination:    result.Pagination,
		Kind:          input.Kind,
		FavoritesOnly: input.FavoritesOnly,
		Cleared:       parseIntParam(r, "cleared", 0),
	})
}

// HandleSearch handles GET /history/search.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	kind := r.URL.Query().Get("kind")

	data := SearchPageData{
		PageData: PageData{
			Title:   "Search",
			Version: h.renderer.version,
			Nav:     "search",
		},
		Query:    query,
		Kind:     kind,
		HasQuery: strings.TrimSpace(query) != "",
	}

	if !data.HasQuery {
		// htmx targeting #results means the box was cleared
		if r.Header.Get("HX-Target") == "results" {
			h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
			return
		}
		h.renderer.renderPage(w, r, "search", data)
		return
	}

	result, err := ops.Search(h.history, ops.SearchInput{
		Query:     query,
		Kind:      kind,
		Regex:     parseBoolParam(r, "regex"),
		Highlight: true,
		Limit:     parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data.Items = result.Items
	data.Pagination = result.Pagination
	data.LiteralFallback = result.LiteralFallback

	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
		return
	}
	h.renderer.renderPage(w, r, "search", data)
}

// HandleDetail handles GET /history/{id}.
// ?view=markdown renders text entries as Markdown.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("entry ID is required"))
		return
	}

	rec, err := ops.Get(h.history, ops.GetInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, rec)
		return
	}

	data := DetailPageData{
		PageData: PageData{
			Title:   displayName(rec.Preview, rec.ID),
			Version: h.renderer.version,
			Nav:     "history",
		},
		Entry:        rec,
		HasThumbnail: thumbnailOf(rec) != "",
	}
	if rec.Kind.IsText() && r.URL.Query().Get("view") == "markdown" {
		data.Markdown = true
		data.RenderedHTML = renderMarkdown(rec.Text)
	}
	h.renderer.renderPage(w, r, "detail", data)
}

// HandleThumbnail handles GET /history/{id}/thumbnail for image entries.
func (h *Handlers) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := ops.Get(h.history, ops.GetInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	path := thumbnailOf(rec)
	if path == "" {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, "thumbnail.png", info.ModTime(), f)
}

// HandleDelete handles DELETE /history/{id} and its form fallback.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("entry ID is required"))
		return
	}

	result, err := ops.Delete(h.history, ops.DeleteInput{IDs: []string{id}})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/history")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": result.Deleted,
			"id":      id,
		})
		return
	}

	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

// HandleFavorite handles POST /history/{id}/favorite with form value favorite=true|false.
func (h *Handlers) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	id := r.PathValue("id")
	item, err := ops.Favorite(h.history, ops.FavoriteInput{
		ID:       id,
		Favorite: r.FormValue("favorite") == "true",
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, item)
		return
	}
	http.Redirect(w, r, "/history/"+id, http.StatusSeeOther)
}

// HandleClear handles POST /history/clear, removing every entry.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	result, err := ops.Clear(h.history, ops.ClearInput{Confirm: r.FormValue("confirm") == "true"})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="clear-result">Cleared ` + strconv.Itoa(result.Cleared) + ` entries</div>`))
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/history?cleared="+strconv.Itoa(result.Cleared), http.StatusSeeOther)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

func thumbnailOf(rec *ops.Record) string {
	for _, a := range rec.Assets {
		if a.Role == entry.RoleThumbnail {
			return a.Path
		}
	}
	return ""
}

// displayName returns the first line of the preview, or a truncated ID.
func displayName(preview, id string) string {
	if line, _, _ := strings.Cut(strings.TrimSpace(preview), "\n"); line != "" {
		return entry.Truncate(line, 60)
	}
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}

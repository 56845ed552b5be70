// Package web serves a local, read-mostly browser for clipboard history.
package web

import (
	"context"
	"embed"
	stderrors "errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewHandler builds the routed history browser.
func NewHandler(h ops.History, version string, logger *zap.Logger) http.Handler {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}

	handlers := &Handlers{
		history:  h,
		renderer: NewRenderer(templateSub, version, logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/history", http.StatusFound)
	})
	mux.HandleFunc("GET /history", handlers.HandleList)
	mux.HandleFunc("GET /history/search", handlers.HandleSearch)
	mux.HandleFunc("POST /history/clear", handlers.HandleClear)
	mux.HandleFunc("GET /history/{id}", handlers.HandleDetail)
	mux.HandleFunc("GET /history/{id}/thumbnail", handlers.HandleThumbnail)
	mux.HandleFunc("DELETE /history/{id}", handlers.HandleDelete)
	mux.HandleFunc("POST /history/{id}/delete", handlers.HandleDelete)
	mux.HandleFunc("POST /history/{id}/favorite", handlers.HandleFavorite)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Serve runs the history browser on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if host, _, err := net.SplitHostPort(addr); err == nil {
		if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
			logger.Warn("history browser is binding to all interfaces and may be reachable from the network", zap.String("addr", addr))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("history browser listening", zap.String("url", "http://"+addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

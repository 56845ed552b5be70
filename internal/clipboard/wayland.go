package clipboard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os/exec"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/classify"
)

const (
	mimeURIList = "text/uri-list"
	mimeHTML    = "text/html"
	mimeRTF     = "text/rtf"
)

// imagePriority lists image types in order of preference.
var imagePriority = []string{"image/png", "image/jpeg", "image/gif", "image/bmp"}

var textPriority = []string{"text/plain;charset=utf-8", "text/plain", "UTF8_STRING", "STRING", "TEXT"}

// Wayland talks to the compositor through the wl-clipboard tools:
// `wl-paste --watch` for change signals, `wl-paste --type` for reads and
// `wl-copy --type` for writes.
type Wayland struct {
	paste  string
	copy   string
	logger *zap.Logger
}

// NewWayland locates wl-paste and wl-copy on PATH.
func NewWayland(logger *zap.Logger) (*Wayland, error) {
	paste, err := exec.LookPath("wl-paste")
	if err != nil {
		return nil, err
	}
	cp, err := exec.LookPath("wl-copy")
	if err != nil {
		return nil, err
	}
	return &Wayland{paste: paste, copy: cp, logger: logger}, nil
}

// Name implements Host.
func (w *Wayland) Name() string { return "wayland" }

// Changes runs `wl-paste --watch` and emits one signal per selection change.
// The channel closes when ctx ends or the watcher exits.
func (w *Wayland) Changes(ctx context.Context) (<-chan struct{}, error) {
	cmd := exec.CommandContext(ctx, w.paste, "--watch", "echo", "changed")
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start wl-paste --watch: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(out)
		for sc.Scan() {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			w.logger.Warn("wl-paste watcher exited", zap.Error(err))
		}
	}()
	return ch, nil
}

// Read fetches the current selection in its richest supported form.
func (w *Wayland) Read(ctx context.Context) (classify.Payload, error) {
	types, err := w.listTypes(ctx)
	if err != nil {
		return classify.Payload{}, err
	}
	if len(types) == 0 {
		return classify.Payload{}, nil
	}

	if slices.Contains(types, mimeURIList) {
		data, err := w.read(ctx, mimeURIList)
		if err != nil {
			return classify.Payload{}, err
		}
		if files := parseURIList(string(data)); len(files) > 0 {
			return classify.Payload{Files: files}, nil
		}
	}

	for _, mime := range imagePriority {
		if slices.Contains(types, mime) {
			data, err := w.read(ctx, mime)
			if err != nil {
				return classify.Payload{}, err
			}
			return classify.Payload{Image: data}, nil
		}
	}

	var p classify.Payload
	for _, mime := range textPriority {
		if slices.Contains(types, mime) {
			data, err := w.read(ctx, mime)
			if err != nil {
				return classify.Payload{}, err
			}
			p.Text = string(data)
			break
		}
	}
	for _, mime := range []string{mimeHTML, mimeRTF} {
		if slices.Contains(types, mime) {
			data, err := w.read(ctx, mime)
			if err != nil {
				return classify.Payload{}, err
			}
			p.Markup = string(data)
			break
		}
	}
	return p, nil
}

// Write replaces the selection with p in its native type.
func (w *Wayland) Write(ctx context.Context, p classify.Payload) error {
	mime, data := "text/plain;charset=utf-8", []byte(p.Text)
	switch {
	case len(p.Files) > 0:
		mime, data = mimeURIList, []byte(formatURIList(p.Files))
	case len(p.Image) > 0:
		_, format, err := image.DecodeConfig(bytes.NewReader(p.Image))
		if err != nil {
			return fmt.Errorf("detect image type: %w", err)
		}
		mime, data = "image/"+format, p.Image
	case p.Markup != "" && !strings.HasPrefix(strings.TrimSpace(p.Markup), `{\rtf`):
		mime, data = mimeHTML, []byte(p.Markup)
	}

	cmd := exec.CommandContext(ctx, w.copy, "--type", mime)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wl-copy: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (w *Wayland) listTypes(ctx context.Context) ([]string, error) {
	out, err := w.run(ctx, "--list-types")
	if err != nil {
		if isNoSelection(err) {
			return nil, nil
		}
		return nil, err
	}
	var types []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			types = append(types, line)
		}
	}
	return types, nil
}

func (w *Wayland) read(ctx context.Context, mime string) ([]byte, error) {
	return w.run(ctx, "--no-newline", "--type", mime)
}

func (w *Wayland) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, w.paste, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, &pasteError{err: err, stderr: strings.TrimSpace(stderr.String())}
	}
	return out, nil
}

type pasteError struct {
	err    error
	stderr string
}

func (e *pasteError) Error() string {
	return fmt.Sprintf("wl-paste: %v: %s", e.err, e.stderr)
}

func (e *pasteError) Unwrap() error { return e.err }

// isNoSelection reports whether wl-paste failed only because nothing is copied.
func isNoSelection(err error) bool {
	var pe *pasteError
	if !errors.As(err, &pe) {
		return false
	}
	msg := strings.ToLower(pe.stderr)
	return strings.Contains(msg, "no selection") || strings.Contains(msg, "nothing is copied")
}

// parseURIList returns the local paths of a text/uri-list body.
func parseURIList(body string) []string {
	var paths []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme != "file" || u.Path == "" {
			continue
		}
		paths = append(paths, u.Path)
	}
	return paths
}

func formatURIList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		u := url.URL{Scheme: "file", Path: p}
		b.WriteString(u.String())
		b.WriteString("\r\n")
	}
	return b.String()
}

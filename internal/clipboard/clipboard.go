// Package clipboard adapts host clipboards to the capture monitor.
package clipboard

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/hpungsan/klip/internal/classify"
)

// Host is a readable, writable clipboard that announces changes.
type Host interface {
	Name() string
	Read(ctx context.Context) (classify.Payload, error)
	Write(ctx context.Context, p classify.Payload) error
	Changes(ctx context.Context) (<-chan struct{}, error)
}

// Detect returns the best clipboard available on this host: the Wayland
// adapter when a compositor and wl-clipboard are present, otherwise the
// portable text-only adapter.
func Detect(logger *zap.Logger) Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		w, err := NewWayland(logger)
		if err == nil {
			return w
		}
		logger.Info("wayland clipboard unavailable, falling back to portable", zap.Error(err))
	}
	return NewPortable(logger, DefaultPollInterval)
}

// Package logging builds the service logger and carries request scoped loggers
// on a context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

// ParseLevel converts a configuration value such as "debug" or "WARN" into a level.
// An empty value selects info.
func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", value)
	}
}

// New returns a JSON logger writing to w at the given level. A nil writer logs to stdout.
func New(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger previously attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// FromContextOr returns the context logger, falling back to base and then to slog.Default.
func FromContextOr(ctx context.Context, base *slog.Logger) *slog.Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	if base != nil {
		return base
	}
	return slog.Default()
}

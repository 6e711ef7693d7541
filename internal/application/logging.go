package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/eventboard/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContextOr(ctx, base)

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// logResult writes the outcome of a service call. Expected client errors are
// logged at warn, everything else at error.
func logResult(ctx context.Context, logger *slog.Logger, err error, failure, success string, attrs ...any) {
	if err == nil {
		logger.InfoContext(ctx, success, attrs...)
		return
	}
	kind := ErrorKind(err)
	switch kind {
	case "unexpected", "persistence", "timeout":
		logger.ErrorContext(ctx, failure, "error", err, "error_kind", kind)
	default:
		logger.WarnContext(ctx, failure, "error", err, "error_kind", kind)
	}
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrUnsupportedCadence):
		return "unsupported_cadence"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var pErr *PersistenceError
	if errors.As(err, &pErr) {
		return "persistence"
	}

	return "unexpected"
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/eventboard/internal/application"
	"github.com/example/eventboard/internal/logging"
)

// Realm is advertised in WWW-Authenticate challenges.
const Realm = "eventboard"

// retryAfterSeconds is sent with 503 responses caused by storage timeouts.
const retryAfterSeconds = 2

var (
	errBadRequestBody = errors.New("request body is malformed")
	errInvalidEventID = errors.New("event id must be a positive integer")
	errInvalidUserID  = errors.New("user id must be a positive integer")
	errMissingWindow  = errors.New("from and to query parameters are required")
)

type errorResponse struct {
	Message string            `json:"message"`
	Entity  string            `json:"entity,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes a client error whose message is safe to show.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		message = err.Error()
	}
	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto status codes. Storage
// details never reach the response body.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		vErr  *application.ValidationError
		nfErr *application.NotFoundError
	)

	switch {
	case err == nil:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	case errors.Is(err, application.ErrUnauthenticated):
		challenge(w)
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Message: "authentication required"})
	case errors.Is(err, application.ErrForbidden):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{Message: "you are not allowed to perform this action"})
	case errors.As(err, &nfErr):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: nfErr.Entity + " not found", Entity: nfErr.Entity})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "resource not found"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "resource already exists"})
	case errors.Is(err, application.ErrUnsupportedCadence):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: "validation failed",
			Errors:  map[string]string{"repeatInterval": "unsupported repeat interval"},
		})
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{Message: "validation failed", Errors: vErr.FieldErrors})
	case errors.Is(err, application.ErrTimeout):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Message: "storage is busy, retry later"})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err, "error_kind", application.ErrorKind(err))
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, r.logger)
}

func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
}

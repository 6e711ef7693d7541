package http

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/example/eventboard/internal/application"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = "X-Request-ID"

// Authenticator verifies basic-auth credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (application.Principal, error)
}

// RequireBasicAuth resolves the Authorization header into a principal stored
// on the request context. Paths listed in public skip the check.
func RequireBasicAuth(auth Authenticator, logger *slog.Logger, public ...string) func(http.Handler) http.Handler {
	responder := newResponder(logger)
	skip := make(map[string]bool, len(public))
	for _, p := range public {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			email, password, ok := r.BasicAuth()
			if !ok {
				responder.handleServiceError(r.Context(), w, application.ErrUnauthenticated)
				return
			}

			principal, err := auth.Authenticate(r.Context(), email, password)
			if err != nil {
				responder.handleServiceError(r.Context(), w, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("principal_id", principal.UserID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger assigns every request an identifier, attaches a child logger
// to its context and logs completion with the response status. A nil newID
// uses random UUIDs.
func RequestLogger(base *slog.Logger, newID func() string) func(http.Handler) http.Handler {
	base = defaultLogger(base)
	if newID == nil {
		newID = uuid.NewString
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = newID()
			}
			w.Header().Set(RequestIDHeader, id)

			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx := ContextWithRequestID(ContextWithLogger(r.Context(), logger), id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "request completed", "status", rec.status, "duration", time.Since(start))
		})
	}
}

// Recoverer turns a handler panic into a 500 response.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "handler panicked",
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

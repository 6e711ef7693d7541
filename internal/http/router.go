package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// HealthPath answers without credentials.
const HealthPath = "/health"

type RouterConfig struct {
	Auth          *AuthHandler
	Events        *EventHandler
	Recurrences   *RecurrenceHandler
	Assignments   *AssignmentHandler
	Users         *UserHandler
	Calendar      *CalendarHandler
	Authenticator Authenticator
	Logger        *slog.Logger
	// AllowedOrigins feeds the CORS policy. Empty allows any origin.
	AllowedOrigins []string
	// RequestIDs generates request identifiers. Nil uses random UUIDs.
	RequestIDs func() string
	// Health reports storage reachability. Nil always reports healthy.
	Health func(ctx context.Context) error
}

// NewRouter registers every route and wraps them in the middleware chain:
// request logging, panic recovery, CORS and basic auth, outermost first.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, nil)
	})

	r.HandleFunc(HealthPath, healthHandler(responder, cfg.Health)).Methods(http.MethodGet)

	if cfg.Auth != nil {
		r.HandleFunc("/login", cfg.Auth.Login).Methods(http.MethodGet)
	}

	// Literal /event/... paths are registered before the {eventId} patterns.
	if cfg.Recurrences != nil {
		r.HandleFunc("/event/retrieve-recurring-suffixes", cfg.Recurrences.ListDescriptors).Methods(http.MethodGet)
		r.HandleFunc("/event/retrieve-recurring-events", cfg.Recurrences.ListOccurrences).Methods(http.MethodGet)
		r.HandleFunc("/event/{eventId:[0-9]+}/repeat", cfg.Recurrences.Repeat).Methods(http.MethodPost)
	}

	if cfg.Events != nil {
		events := r.PathPrefix("/event").Subrouter()
		events.HandleFunc("", cfg.Events.List).Methods(http.MethodGet)
		events.HandleFunc("", cfg.Events.Create).Methods(http.MethodPost)
		events.HandleFunc("/{eventId:[0-9]+}", cfg.Events.Get).Methods(http.MethodGet)
		events.HandleFunc("/{eventId:[0-9]+}", cfg.Events.Update).Methods(http.MethodPatch)
		events.HandleFunc("/{eventId:[0-9]+}", cfg.Events.Delete).Methods(http.MethodDelete)
		r.HandleFunc("/user/{userId:[0-9]+}/events", cfg.Events.ListForUser).Methods(http.MethodGet)
	}

	if cfg.Assignments != nil {
		r.HandleFunc("/event/{eventId:[0-9]+}/assign", cfg.Assignments.List).Methods(http.MethodGet)
		assign := r.PathPrefix("/event/{eventId:[0-9]+}/assign").Subrouter()
		assign.HandleFunc("/{userId:[0-9]+}", cfg.Assignments.Assign).Methods(http.MethodPost)
		assign.HandleFunc("/{userId:[0-9]+}", cfg.Assignments.Unassign).Methods(http.MethodDelete)
	}

	if cfg.Users != nil {
		users := r.PathPrefix("/user").Subrouter()
		users.HandleFunc("", cfg.Users.List).Methods(http.MethodGet)
		users.HandleFunc("", cfg.Users.Create).Methods(http.MethodPost)
		users.HandleFunc("/{userId:[0-9]+}", cfg.Users.Get).Methods(http.MethodGet)
		users.HandleFunc("/{userId:[0-9]+}", cfg.Users.Update).Methods(http.MethodPatch)
		users.HandleFunc("/{userId:[0-9]+}", cfg.Users.Delete).Methods(http.MethodDelete)
		users.HandleFunc("/{userId:[0-9]+}/password", cfg.Users.ChangePassword).Methods(http.MethodPatch)
	}

	if cfg.Calendar != nil {
		r.HandleFunc("/calendar", cfg.Calendar.Entries).Methods(http.MethodGet)
		r.HandleFunc("/calendar.ics", cfg.Calendar.Feed).Methods(http.MethodGet)
	}

	var handler http.Handler = r
	if cfg.Authenticator != nil {
		handler = RequireBasicAuth(cfg.Authenticator, logger, HealthPath)(handler)
	}
	handler = cors.New(corsOptions(cfg.AllowedOrigins)).Handler(handler)
	handler = Recoverer(logger)(handler)
	handler = RequestLogger(logger, cfg.RequestIDs)(handler)

	return handler
}

// corsOptions allows credentialed requests from the listed origins only. An
// empty list refuses every cross-origin request instead of falling back to the
// library's allow-all default.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	}
	if len(origins) == 0 {
		opts.AllowOriginFunc = func(string) bool { return false }
	}
	return opts
}

type healthResponse struct {
	Status string `json:"status"`
}

func healthHandler(responder responder, check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				responder.loggerFor(r.Context()).WarnContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/eventboard/internal/application"
)

// AuthHandler reports the principal resolved by RequireBasicAuth. Clients
// call it to check credentials before storing them.
type AuthHandler struct {
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

type loginResponse struct {
	UserID  int64 `json:"userId"`
	IsAdmin bool  `json:"isAdmin"`
}

// Login handles GET /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthenticated)
		return
	}

	h.log(r.Context(), "Login", "user_id", principal.UserID).InfoContext(r.Context(), "user authenticated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, loginResponse{
		UserID:  principal.UserID,
		IsAdmin: principal.IsAdmin(),
	})
}

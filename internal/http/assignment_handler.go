package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/eventboard/internal/application"
)

type assignmentService interface {
	Assign(ctx context.Context, principal application.Principal, eventID, userID int64) (application.AssignOutcome, error)
	Unassign(ctx context.Context, principal application.Principal, eventID, userID int64) error
	ListAssignees(ctx context.Context, eventID int64) ([]application.User, error)
}

// AssignmentHandler adds and removes event attendance.
type AssignmentHandler struct {
	service   assignmentService
	responder responder
	logger    *slog.Logger
}

func NewAssignmentHandler(service assignmentService, logger *slog.Logger) *AssignmentHandler {
	base := defaultLogger(logger)
	return &AssignmentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AssignmentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AssignmentHandler", operation, attrs...)
}

type assignmentResponse struct {
	Status string `json:"status"`
}

// Assign handles POST /event/{eventId}/assign/{userId}. A repeated
// assignment answers 200 instead of 201.
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := h.ids(w, r)
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	outcome, err := h.service.Assign(r.Context(), principal, eventID, userID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if outcome == application.AssignAlreadyAssigned {
		status = http.StatusOK
	}
	h.log(r.Context(), "Assign", "event_id", eventID, "user_id", userID, "outcome", outcome.String()).
		InfoContext(r.Context(), "assignment handled")
	h.responder.writeJSON(r.Context(), w, status, assignmentResponse{Status: outcome.String()})
}

// Unassign handles DELETE /event/{eventId}/assign/{userId}.
func (h *AssignmentHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	eventID, userID, ok := h.ids(w, r)
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.Unassign(r.Context(), principal, eventID, userID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Unassign", "event_id", eventID, "user_id", userID).InfoContext(r.Context(), "assignment removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List handles GET /event/{eventId}/assign.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	users, err := h.service.ListAssignees(r.Context(), eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toUserDTOs(users))
}

func (h *AssignmentHandler) ids(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	eventID, ok := pathID(r, "eventId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return 0, 0, false
	}
	userID, ok := pathID(r, "userId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return 0, 0, false
	}
	return eventID, userID, true
}

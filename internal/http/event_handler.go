package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/eventboard/internal/application"
)

type eventService interface {
	CreateEvent(ctx context.Context, principal application.Principal, input application.EventInput) (application.Event, error)
	GetEvent(ctx context.Context, id int64) (application.Event, error)
	ListEvents(ctx context.Context, window application.EventRange) ([]application.Event, error)
	UpdateEvent(ctx context.Context, principal application.Principal, id int64, patch application.EventPatch) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, id int64) error
	ListEventsForUser(ctx context.Context, principal application.Principal, userID int64, after *time.Time) ([]application.Event, error)
}

// EventHandler serves the /event collection and per-user event listings.
type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

// List handles GET /event with optional from and to bounds.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	events, err := h.service.ListEvents(r.Context(), application.EventRange{From: from, To: to})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTOs(events))
}

// Create handles POST /event.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	event, err := h.service.CreateEvent(r.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "event_id", event.ID).InfoContext(r.Context(), "event created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, createdEventResponse{EventID: event.ID})
}

// Get handles GET /event/{eventId}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "eventId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	event, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Update handles PATCH /event/{eventId}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "eventId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req eventPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "event_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode event patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	event, err := h.service.UpdateEvent(r.Context(), principal, id, req.toPatch())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Update", "event_id", id).InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTO(event))
}

// Delete handles DELETE /event/{eventId}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "eventId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	if err := h.service.DeleteEvent(r.Context(), principal, id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Delete", "event_id", id).InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ListForUser handles GET /user/{userId}/events?afterDateTime=.
func (h *EventHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}
	after, err := queryTime(r, "afterDateTime")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	events, err := h.service.ListEventsForUser(r.Context(), principal, userID, after)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEventDTOs(events))
}

type eventRequest struct {
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

func (req eventRequest) toInput() application.EventInput {
	return application.EventInput{
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		Start:       req.StartDate,
		End:         req.EndDate,
	}
}

type eventPatchRequest struct {
	Title       *string    `json:"title"`
	Location    *string    `json:"location"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

func (req eventPatchRequest) toPatch() application.EventPatch {
	return application.EventPatch{
		Title:       req.Title,
		Location:    req.Location,
		Description: req.Description,
		Start:       req.StartDate,
		End:         req.EndDate,
	}
}

type eventDTO struct {
	EventID     int64     `json:"eventId"`
	Title       string    `json:"title"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
}

type createdEventResponse struct {
	EventID int64 `json:"eventId"`
}

func toEventDTO(e application.Event) eventDTO {
	return eventDTO{
		EventID:     e.ID,
		Title:       e.Title,
		Location:    e.Location,
		Description: e.Description,
		StartDate:   e.Start.UTC(),
		EndDate:     e.End.UTC(),
	}
}

func toEventDTOs(events []application.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toEventDTO(e))
	}
	return out
}

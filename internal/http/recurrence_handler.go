package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/eventboard/internal/application"
)

type recurrenceService interface {
	RepeatEvent(ctx context.Context, params application.RepeatEventParams) (application.RepeatEventResult, error)
	ListDescriptors(ctx context.Context) ([]application.RecurrenceDescriptor, error)
	ListOccurrences(ctx context.Context, descriptorIDs []int64) ([]application.Occurrence, error)
}

// RecurrenceHandler exposes the recurring event expander.
type RecurrenceHandler struct {
	service   recurrenceService
	responder responder
	logger    *slog.Logger
}

func NewRecurrenceHandler(service recurrenceService, logger *slog.Logger) *RecurrenceHandler {
	base := defaultLogger(logger)
	return &RecurrenceHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RecurrenceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "RecurrenceHandler", operation, attrs...)
}

// Repeat handles POST /event/{eventId}/repeat.
func (h *RecurrenceHandler) Repeat(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventId")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req repeatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Repeat", "event_id", eventID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode repeat request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.RepeatEvent(r.Context(), application.RepeatEventParams{
		Principal: principal,
		EventID:   eventID,
		Start:     req.StartDate,
		End:       req.EndDate,
		Cadence:   req.RepeatInterval,
		Cutoff:    req.RepeatEndDate,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Repeat",
		"event_id", eventID,
		"descriptor_id", result.Descriptor.ID,
		"occurrence_count", len(result.Occurrences),
	).InfoContext(r.Context(), "event repeated")

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, repeatResponse{
		DescriptorID: result.Descriptor.ID,
		RRule:        result.Descriptor.RRule,
		Occurrences:  toOccurrenceDTOs(result.Occurrences),
	})
}

// ListDescriptors handles GET /event/retrieve-recurring-suffixes.
func (h *RecurrenceHandler) ListDescriptors(w http.ResponseWriter, r *http.Request) {
	descriptors, err := h.service.ListDescriptors(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]descriptorDTO, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, descriptorDTO{
			DescriptorID:    d.ID,
			EventID:         d.EventID,
			Type:            d.Cadence.String(),
			AnchorStartDate: d.AnchorStart.UTC(),
			EndRecurring:    d.Cutoff.UTC(),
			RRule:           d.RRule,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

// ListOccurrences handles GET /event/retrieve-recurring-events. Without
// recurringEventIds every occurrence is returned.
func (h *RecurrenceHandler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	ids, err := queryIDs(r, "recurringEventIds")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	occurrences, err := h.service.ListOccurrences(r.Context(), ids)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toOccurrenceDTOs(occurrences))
}

type repeatRequest struct {
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	RepeatInterval string    `json:"repeatInterval"`
	RepeatEndDate  time.Time `json:"repeatEndDate"`
}

type repeatResponse struct {
	DescriptorID int64           `json:"recurringEventSuffixId"`
	RRule        string          `json:"rrule,omitempty"`
	Occurrences  []occurrenceDTO `json:"occurrences"`
}

type descriptorDTO struct {
	DescriptorID    int64     `json:"recurringEventSuffixId"`
	EventID         int64     `json:"eventId"`
	Type            string    `json:"type"`
	AnchorStartDate time.Time `json:"anchorStartDate"`
	EndRecurring    time.Time `json:"endRecurringDate"`
	RRule           string    `json:"rrule,omitempty"`
}

type occurrenceDTO struct {
	OccurrenceID int64     `json:"recurringEventId"`
	DescriptorID int64     `json:"recurringEventSuffixId"`
	EventID      int64     `json:"eventId,omitempty"`
	Title        string    `json:"title,omitempty"`
	Location     string    `json:"location,omitempty"`
	Description  string    `json:"description,omitempty"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
}

func toOccurrenceDTOs(occurrences []application.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occurrences))
	for _, o := range occurrences {
		out = append(out, occurrenceDTO{
			OccurrenceID: o.ID,
			DescriptorID: o.DescriptorID,
			EventID:      o.EventID,
			Title:        o.Title,
			Location:     o.Location,
			Description:  o.Description,
			StartDate:    o.Start.UTC(),
			EndDate:      o.End.UTC(),
		})
	}
	return out
}

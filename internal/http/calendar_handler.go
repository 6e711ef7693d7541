package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/eventboard/internal/application"
)

// calendarProductID identifies this service in exported feeds.
const calendarProductID = "-//eventboard//calendar//EN"

type calendarService interface {
	Entries(ctx context.Context, from, to time.Time) ([]application.CalendarEntry, error)
}

// CalendarHandler serves merged events and occurrences as JSON or iCalendar.
type CalendarHandler struct {
	service   calendarService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewCalendarHandler(service calendarService, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, responder: newResponder(base), logger: base, now: time.Now}
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Entries handles GET /calendar?from=&to=.
func (h *CalendarHandler) Entries(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.entries(w, r)
	if !ok {
		return
	}

	out := make([]calendarEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, calendarEntryDTO{
			Kind:         string(e.Kind),
			EventID:      e.EventID,
			OccurrenceID: e.OccurrenceID,
			DescriptorID: e.DescriptorID,
			Title:        e.Title,
			Location:     e.Location,
			Description:  e.Description,
			StartDate:    e.Start.UTC(),
			EndDate:      e.End.UTC(),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

// Feed handles GET /calendar.ics?from=&to=.
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.entries(w, r)
	if !ok {
		return
	}

	body := renderCalendar(entries, h.now().UTC())
	h.log(r.Context(), "Feed", "entry_count", len(entries)).DebugContext(r.Context(), "calendar feed rendered")

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="eventboard.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.log(r.Context(), "Feed").ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

func (h *CalendarHandler) entries(w http.ResponseWriter, r *http.Request) ([]application.CalendarEntry, bool) {
	from, err := queryTime(r, "from")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return nil, false
	}
	to, err := queryTime(r, "to")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return nil, false
	}
	if from == nil || to == nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingWindow)
		return nil, false
	}

	entries, err := h.service.Entries(r.Context(), *from, *to)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return nil, false
	}
	return entries, true
}

// renderCalendar builds a PUBLISH calendar. Occurrences point back at their
// base event through RELATED-TO.
func renderCalendar(entries []application.CalendarEntry, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(calendarProductID)

	for _, e := range entries {
		vevent := cal.AddEvent(entryUID(e))
		vevent.SetDtStampTime(stamp)
		vevent.SetStartAt(e.Start.UTC())
		vevent.SetEndAt(e.End.UTC())
		vevent.SetSummary(e.Title)
		if e.Location != "" {
			vevent.SetLocation(e.Location)
		}
		if e.Description != "" {
			vevent.SetDescription(e.Description)
		}
		if e.Kind == application.CalendarEntryOccurrence {
			vevent.SetProperty(ical.ComponentPropertyRelatedTo, eventUID(e.EventID))
		}
	}
	return cal.Serialize()
}

func entryUID(e application.CalendarEntry) string {
	if e.Kind == application.CalendarEntryOccurrence {
		return "occurrence-" + strconv.FormatInt(e.OccurrenceID, 10) + "@eventboard"
	}
	return eventUID(e.EventID)
}

func eventUID(id int64) string {
	return "event-" + strconv.FormatInt(id, 10) + "@eventboard"
}

type calendarEntryDTO struct {
	Kind         string    `json:"kind"`
	EventID      int64     `json:"eventId"`
	OccurrenceID int64     `json:"recurringEventId,omitempty"`
	DescriptorID int64     `json:"recurringEventSuffixId,omitempty"`
	Title        string    `json:"title"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
}

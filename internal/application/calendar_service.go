package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// MaxCalendarWindow bounds a single calendar query.
const MaxCalendarWindow = 400 * 24 * time.Hour

// EventLister lists base events overlapping a window.
type EventLister interface {
	ListEvents(ctx context.Context, window EventRange) ([]Event, error)
}

// OccurrenceWindow lists occurrences overlapping [from, to).
type OccurrenceWindow interface {
	ListOccurrencesBetween(ctx context.Context, from, to time.Time) ([]Occurrence, error)
}

// CalendarService merges base events with generated occurrences for display.
type CalendarService struct {
	events      EventLister
	occurrences OccurrenceWindow
	logger      *slog.Logger
}

// NewCalendarService wires dependencies for the calendar service.
func NewCalendarService(events EventLister, occurrences OccurrenceWindow) *CalendarService {
	return NewCalendarServiceWithLogger(events, occurrences, nil)
}

// NewCalendarServiceWithLogger wires dependencies for the calendar service with a logger.
func NewCalendarServiceWithLogger(events EventLister, occurrences OccurrenceWindow, logger *slog.Logger) *CalendarService {
	return &CalendarService{events: events, occurrences: occurrences, logger: defaultLogger(logger)}
}

// Entries returns every base event and occurrence overlapping [from, to),
// ordered by start time.
func (s *CalendarService) Entries(ctx context.Context, from, to time.Time) ([]CalendarEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("CalendarService is nil")
	}
	if s.events == nil || s.occurrences == nil {
		return nil, fmt.Errorf("calendar repositories not configured")
	}

	if vErr := validateCalendarWindow(from, to); vErr.HasErrors() {
		return nil, vErr
	}
	from, to = from.UTC(), to.UTC()

	events, err := s.events.ListEvents(ctx, EventRange{From: &from, To: &to})
	if err != nil {
		return nil, storageError("list events", err)
	}
	occurrences, err := s.occurrences.ListOccurrencesBetween(ctx, from, to)
	if err != nil {
		return nil, storageError("list occurrences", err)
	}

	entries := make([]CalendarEntry, 0, len(events)+len(occurrences))
	for _, e := range events {
		entries = append(entries, CalendarEntry{
			Kind:        CalendarEntryEvent,
			EventID:     e.ID,
			Title:       e.Title,
			Location:    e.Location,
			Description: e.Description,
			Start:       e.Start,
			End:         e.End,
		})
	}
	for _, o := range occurrences {
		entries = append(entries, CalendarEntry{
			Kind:         CalendarEntryOccurrence,
			EventID:      o.EventID,
			OccurrenceID: o.ID,
			DescriptorID: o.DescriptorID,
			Title:        o.Title,
			Location:     o.Location,
			Description:  o.Description,
			Start:        o.Start,
			End:          o.End,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		if entries[i].EventID != entries[j].EventID {
			return entries[i].EventID < entries[j].EventID
		}
		return entries[i].OccurrenceID < entries[j].OccurrenceID
	})

	serviceLogger(ctx, s.logger, "CalendarService", "Entries").DebugContext(ctx, "calendar assembled",
		"events", len(events),
		"occurrences", len(occurrences),
	)
	return entries, nil
}

func validateCalendarWindow(from, to time.Time) *ValidationError {
	vErr := &ValidationError{}
	if from.IsZero() {
		vErr.add("from", "from is required")
	}
	if to.IsZero() {
		vErr.add("to", "to is required")
	}
	if vErr.HasErrors() {
		return vErr
	}
	if !from.Before(to) {
		vErr.add("to", "to must be after from")
	} else if to.Sub(from) > MaxCalendarWindow {
		vErr.add("to", "calendar window is too large")
	}
	return vErr
}

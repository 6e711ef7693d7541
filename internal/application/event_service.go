package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const maxTitleLength = 200

// EventRepository captures the persistence operations needed by the event service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	ListEvents(ctx context.Context, window EventRange) ([]Event, error)
	ListEventsForUser(ctx context.Context, userID int64, after *time.Time) ([]Event, error)
	UpdateEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, id int64) error
}

// UserDirectory answers existence checks for users.
type UserDirectory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// EventService orchestrates validation, authorization, and persistence for events.
type EventService struct {
	events EventRepository
	users  UserDirectory
	logger *slog.Logger
}

// NewEventService wires dependencies for the event service.
func NewEventService(events EventRepository, users UserDirectory) *EventService {
	return NewEventServiceWithLogger(events, users, nil)
}

// NewEventServiceWithLogger wires dependencies for the event service with a logger.
func NewEventServiceWithLogger(events EventRepository, users UserDirectory, logger *slog.Logger) *EventService {
	return &EventService{events: events, users: users, logger: defaultLogger(logger)}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates input and persists a new event for administrators.
func (s *EventService) CreateEvent(ctx context.Context, principal Principal, input EventInput) (event Event, err error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", principal.UserID)
	defer func() {
		logResult(ctx, logger, err, "event creation failed", "event created", "event_id", event.ID)
	}()

	if !principal.IsAdmin() {
		err = ErrForbidden
		return
	}

	normalized := normalizeEventInput(input)
	if vErr := validateEventInput(normalized); vErr.HasErrors() {
		err = vErr
		return
	}

	event, err = s.events.CreateEvent(ctx, Event{
		Title:       normalized.Title,
		Location:    normalized.Location,
		Description: normalized.Description,
		Start:       normalized.Start,
		End:         normalized.End,
	})
	if err != nil {
		err = storageError("create event", err)
		return Event{}, err
	}
	return event, nil
}

// GetEvent returns a single event.
func (s *EventService) GetEvent(ctx context.Context, id int64) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}

	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Event{}, notFound(EntityEvent)
		}
		return Event{}, storageError("get event", err)
	}
	return event, nil
}

// ListEvents returns events overlapping the optional window, ordered by start.
func (s *EventService) ListEvents(ctx context.Context, window EventRange) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}
	if window.From != nil && window.To != nil && !window.From.Before(*window.To) {
		vErr := &ValidationError{}
		vErr.add("to", "to must be after from")
		return nil, vErr
	}

	events, err := s.events.ListEvents(ctx, window)
	if err != nil {
		return nil, storageError("list events", err)
	}
	return events, nil
}

// UpdateEvent applies a partial update for administrators.
func (s *EventService) UpdateEvent(ctx context.Context, principal Principal, id int64, patch EventPatch) (event Event, err error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "UpdateEvent", "principal_id", principal.UserID, "event_id", id)
	defer func() {
		logResult(ctx, logger, err, "event update failed", "event updated")
	}()

	if !principal.IsAdmin() {
		err = ErrForbidden
		return
	}

	var existing Event
	existing, err = s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = notFound(EntityEvent)
			return
		}
		err = storageError("get event", err)
		return
	}

	merged := normalizeEventInput(applyEventPatch(existing, patch))
	if vErr := validateEventInput(merged); vErr.HasErrors() {
		err = vErr
		return
	}

	event = Event{
		ID:          existing.ID,
		Title:       merged.Title,
		Location:    merged.Location,
		Description: merged.Description,
		Start:       merged.Start,
		End:         merged.End,
	}
	if err = s.events.UpdateEvent(ctx, event); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = notFound(EntityEvent)
		} else {
			err = storageError("update event", err)
		}
		return Event{}, err
	}
	return event, nil
}

// DeleteEvent removes an event for administrators. Its recurrence and attendance go with it.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, id int64) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEvent", "principal_id", principal.UserID, "event_id", id)
	defer func() {
		logResult(ctx, logger, err, "event deletion failed", "event deleted")
	}()

	if !principal.IsAdmin() {
		return ErrForbidden
	}

	if err = s.events.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(EntityEvent)
		}
		return storageError("delete event", err)
	}
	return nil
}

// ListEventsForUser returns the events a user attends, optionally only those
// starting at or after the given instant. Users may list their own events;
// administrators may list anyone's.
func (s *EventService) ListEventsForUser(ctx context.Context, principal Principal, userID int64, after *time.Time) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}

	if s.users != nil {
		exists, err := s.users.UserExists(ctx, userID)
		if err != nil {
			return nil, storageError("check user", err)
		}
		if !exists {
			return nil, notFound(EntityUser)
		}
	}

	if !principal.CanActOnUser(userID) {
		return nil, ErrForbidden
	}

	events, err := s.events.ListEventsForUser(ctx, userID, after)
	if err != nil {
		return nil, storageError("list user events", err)
	}
	return events, nil
}

func applyEventPatch(existing Event, patch EventPatch) EventInput {
	input := EventInput{
		Title:       existing.Title,
		Location:    existing.Location,
		Description: existing.Description,
		Start:       existing.Start,
		End:         existing.End,
	}
	if patch.Title != nil {
		input.Title = *patch.Title
	}
	if patch.Location != nil {
		input.Location = *patch.Location
	}
	if patch.Description != nil {
		input.Description = *patch.Description
	}
	if patch.Start != nil {
		input.Start = *patch.Start
	}
	if patch.End != nil {
		input.End = *patch.End
	}
	return input
}

func normalizeEventInput(input EventInput) EventInput {
	return EventInput{
		Title:       strings.TrimSpace(input.Title),
		Location:    strings.TrimSpace(input.Location),
		Description: strings.TrimSpace(input.Description),
		Start:       input.Start.UTC(),
		End:         input.End.UTC(),
	}
}

func validateEventInput(input EventInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Title == "" {
		vErr.add("title", "title is required")
	} else if utf8.RuneCountInString(input.Title) > maxTitleLength {
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	vErr.merge(validateTimeRange("startDate", "endDate", input.Start, input.End))
	return vErr
}

func validateTimeRange(startField, endField string, start, end time.Time) *ValidationError {
	vErr := &ValidationError{}
	if start.IsZero() {
		vErr.add(startField, "start time is required")
	}
	if end.IsZero() {
		vErr.add(endField, "end time is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add(endField, "end time must be after start time")
	}
	return vErr
}

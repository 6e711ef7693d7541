package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/eventboard/internal/recurrence"
)

// RecurrenceRepository persists descriptors together with their occurrences.
// CreateRecurrence must write the descriptor and every occurrence atomically.
type RecurrenceRepository interface {
	CreateRecurrence(ctx context.Context, descriptor RecurrenceDescriptor, occurrences []Occurrence) (RecurrenceDescriptor, []Occurrence, error)
	ListDescriptors(ctx context.Context) ([]RecurrenceDescriptor, error)
	ListOccurrences(ctx context.Context, descriptorIDs []int64) ([]Occurrence, error)
}

// EventCatalog answers existence checks for events.
type EventCatalog interface {
	EventExists(ctx context.Context, id int64) (bool, error)
}

// RecurrenceService expands base events into occurrences and stores them.
type RecurrenceService struct {
	recurrences RecurrenceRepository
	events      EventCatalog
	engine      *recurrence.Engine
	logger      *slog.Logger
}

// NewRecurrenceService wires dependencies for the recurrence service. A nil
// engine expands in UTC.
func NewRecurrenceService(recurrences RecurrenceRepository, events EventCatalog, engine *recurrence.Engine) *RecurrenceService {
	return NewRecurrenceServiceWithLogger(recurrences, events, engine, nil)
}

// NewRecurrenceServiceWithLogger wires dependencies for the recurrence service with a logger.
func NewRecurrenceServiceWithLogger(recurrences RecurrenceRepository, events EventCatalog, engine *recurrence.Engine, logger *slog.Logger) *RecurrenceService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	return &RecurrenceService{
		recurrences: recurrences,
		events:      events,
		engine:      engine,
		logger:      defaultLogger(logger),
	}
}

func (s *RecurrenceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RecurrenceService", operation, attrs...)
}

// RepeatEvent makes an event recur. Checks run in order: admin role, input
// validation, event existence. The descriptor and all occurrences are then
// written in one transaction. A cutoff at or before the start still records
// the descriptor with zero occurrences.
func (s *RecurrenceService) RepeatEvent(ctx context.Context, params RepeatEventParams) (result RepeatEventResult, err error) {
	if s == nil {
		err = fmt.Errorf("RecurrenceService is nil")
		return
	}
	if s.recurrences == nil || s.events == nil {
		err = fmt.Errorf("recurrence repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "RepeatEvent",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
		"cadence", params.Cadence,
	)
	defer func() {
		logResult(ctx, logger, err, "repeat event failed", "repeat event created",
			"descriptor_id", result.Descriptor.ID,
			"occurrences", len(result.Occurrences),
		)
	}()

	if !params.Principal.IsAdmin() {
		err = ErrForbidden
		return
	}

	var cadence recurrence.Cadence
	cadence, err = validateRepeatParams(params)
	if err != nil {
		return
	}

	var exists bool
	exists, err = s.events.EventExists(ctx, params.EventID)
	if err != nil {
		err = storageError("check event", err)
		return
	}
	if !exists {
		err = notFound(EntityEvent)
		return
	}

	var expanded []recurrence.Occurrence
	expanded, err = s.engine.Expand(params.Start, params.End, cadence, params.Cutoff)
	if err != nil {
		if errors.Is(err, recurrence.ErrTooManyOccurrences) {
			vErr := &ValidationError{}
			vErr.add("repeatEndDate", fmt.Sprintf("repeat end date produces more than %d occurrences", recurrence.MaxOccurrences))
			err = vErr
		}
		return
	}

	occurrences := make([]Occurrence, 0, len(expanded))
	for _, occ := range expanded {
		occurrences = append(occurrences, Occurrence{EventID: params.EventID, Start: occ.Start.UTC(), End: occ.End.UTC()})
	}

	descriptor := RecurrenceDescriptor{
		EventID:     params.EventID,
		Cadence:     cadence,
		AnchorStart: params.Start.UTC(),
		Cutoff:      params.Cutoff.UTC(),
	}

	var stored []Occurrence
	descriptor, stored, err = s.recurrences.CreateRecurrence(ctx, descriptor, occurrences)
	if err != nil {
		if errors.Is(err, ErrReferenceMissing) {
			err = notFound(EntityEvent)
			return
		}
		err = storageError("create recurrence", err)
		return
	}

	descriptor.RRule = s.renderRRule(descriptor)
	result = RepeatEventResult{Descriptor: descriptor, Occurrences: stored}
	return
}

// ListDescriptors returns every recurrence descriptor with its RRULE rendering.
func (s *RecurrenceService) ListDescriptors(ctx context.Context) ([]RecurrenceDescriptor, error) {
	if s == nil {
		return nil, fmt.Errorf("RecurrenceService is nil")
	}
	if s.recurrences == nil {
		return nil, fmt.Errorf("recurrence repository not configured")
	}

	descriptors, err := s.recurrences.ListDescriptors(ctx)
	if err != nil {
		return nil, storageError("list descriptors", err)
	}
	for i := range descriptors {
		descriptors[i].RRule = s.renderRRule(descriptors[i])
	}
	return descriptors, nil
}

// ListOccurrences returns occurrences joined with their base events. An empty
// id list selects every descriptor.
func (s *RecurrenceService) ListOccurrences(ctx context.Context, descriptorIDs []int64) ([]Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("RecurrenceService is nil")
	}
	if s.recurrences == nil {
		return nil, fmt.Errorf("recurrence repository not configured")
	}

	occurrences, err := s.recurrences.ListOccurrences(ctx, dedupeIDs(descriptorIDs))
	if err != nil {
		return nil, storageError("list occurrences", err)
	}
	return occurrences, nil
}

func validateRepeatParams(params RepeatEventParams) (recurrence.Cadence, error) {
	vErr := validateTimeRange("startDate", "endDate", params.Start, params.End)
	if params.Cutoff.IsZero() {
		vErr.add("repeatEndDate", "repeat end date is required")
	} else if !params.Start.IsZero() && params.Cutoff.Before(params.Start) {
		vErr.add("repeatEndDate", "repeat end date must not be before the start date")
	}
	if vErr.HasErrors() {
		return "", vErr
	}

	cadence, err := recurrence.ParseCadence(params.Cadence)
	if err != nil {
		return "", err
	}
	return cadence, nil
}

// renderRRule returns an empty string when the descriptor cannot be rendered,
// for example when it carries a cadence written by an older schema.
func (s *RecurrenceService) renderRRule(d RecurrenceDescriptor) string {
	rule, err := s.engine.RRule(d.Cadence, d.AnchorStart, d.Cutoff)
	if err != nil {
		return ""
	}
	return rule
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

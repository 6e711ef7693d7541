package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/eventboard/internal/application"
	"github.com/example/eventboard/internal/persistence"
	"github.com/example/eventboard/internal/recurrence"
)

// storageError translates persistence errors into the application's
// vocabulary. The original error stays wrapped for logging.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrTimeout):
		return fmt.Errorf("%w: %w", application.ErrTimeout, err)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %w", application.ErrReferenceMissing, err)
	default:
		return err
	}
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	stored, err := a.repo.CreateEvent(ctx, toPersistenceEvent(event))
	if err != nil {
		return application.Event{}, eventWriteError(err)
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id int64) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, storageError(err)
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) EventExists(ctx context.Context, id int64) (bool, error) {
	ok, err := a.repo.EventExists(ctx, id)
	return ok, storageError(err)
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, window application.EventRange) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		EndsAfter:    window.From,
		StartsBefore: window.To,
	})
	if err != nil {
		return nil, storageError(err)
	}
	return toApplicationEvents(models), nil
}

func (a *eventRepositoryAdapter) ListEventsForUser(ctx context.Context, userID int64, after *time.Time) ([]application.Event, error) {
	models, err := a.repo.ListEventsForUser(ctx, userID, after)
	if err != nil {
		return nil, storageError(err)
	}
	return toApplicationEvents(models), nil
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) error {
	return eventWriteError(a.repo.UpdateEvent(ctx, toPersistenceEvent(event)))
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id int64) error {
	return storageError(a.repo.DeleteEvent(ctx, id))
}

// eventWriteError reports the start/end CHECK constraint as a field error.
func eventWriteError(err error) error {
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return &application.ValidationError{FieldErrors: map[string]string{
			"endDate": "endDate must be after startDate",
		}}
	}
	return storageError(err)
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	stored, err := a.repo.CreateUser(ctx, toPersistenceUser(creds.User, creds.PasswordHash))
	if err != nil {
		return application.User{}, storageError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id int64) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, storageError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserCredentials(ctx context.Context, id int64) (application.UserCredentials, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.UserCredentials{}, storageError(err)
	}
	return toApplicationCredentials(stored), nil
}

func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, storageError(err)
	}
	return toApplicationCredentials(stored), nil
}

func (a *userRepositoryAdapter) UserExists(ctx context.Context, id int64) (bool, error) {
	ok, err := a.repo.UserExists(ctx, id)
	return ok, storageError(err)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context, includeAdmins bool) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx, includeAdmins)
	if err != nil {
		return nil, storageError(err)
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) error {
	return storageError(a.repo.UpdateUser(ctx, toPersistenceUser(user, "")))
}

func (a *userRepositoryAdapter) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return storageError(a.repo.UpdatePassword(ctx, id, passwordHash))
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id int64) error {
	return storageError(a.repo.DeleteUser(ctx, id))
}

type recurrenceRepositoryAdapter struct {
	repo persistence.RecurrenceRepository
}

func newRecurrenceRepositoryAdapter(repo persistence.RecurrenceRepository) *recurrenceRepositoryAdapter {
	return &recurrenceRepositoryAdapter{repo: repo}
}

func (a *recurrenceRepositoryAdapter) CreateRecurrence(ctx context.Context, descriptor application.RecurrenceDescriptor, occurrences []application.Occurrence) (application.RecurrenceDescriptor, []application.Occurrence, error) {
	rows := make([]persistence.Occurrence, 0, len(occurrences))
	for _, o := range occurrences {
		rows = append(rows, persistence.Occurrence{Start: o.Start, End: o.End})
	}

	storedDescriptor, storedOccurrences, err := a.repo.CreateRecurrence(ctx, toPersistenceDescriptor(descriptor), rows)
	if err != nil {
		return application.RecurrenceDescriptor{}, nil, storageError(err)
	}

	out := make([]application.Occurrence, 0, len(storedOccurrences))
	for _, o := range storedOccurrences {
		out = append(out, application.Occurrence{
			ID:           o.ID,
			DescriptorID: o.DescriptorID,
			EventID:      storedDescriptor.EventID,
			Start:        o.Start,
			End:          o.End,
		})
	}

	stored, err := toApplicationDescriptor(storedDescriptor)
	if err != nil {
		return application.RecurrenceDescriptor{}, nil, err
	}
	return stored, out, nil
}

func (a *recurrenceRepositoryAdapter) ListDescriptors(ctx context.Context) ([]application.RecurrenceDescriptor, error) {
	models, err := a.repo.ListDescriptors(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	descriptors := make([]application.RecurrenceDescriptor, 0, len(models))
	for _, model := range models {
		d, err := toApplicationDescriptor(model)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func (a *recurrenceRepositoryAdapter) ListOccurrences(ctx context.Context, descriptorIDs []int64) ([]application.Occurrence, error) {
	models, err := a.repo.ListOccurrences(ctx, descriptorIDs)
	if err != nil {
		return nil, storageError(err)
	}
	return toApplicationOccurrences(models), nil
}

func (a *recurrenceRepositoryAdapter) ListOccurrencesBetween(ctx context.Context, from, to time.Time) ([]application.Occurrence, error) {
	models, err := a.repo.ListOccurrencesBetween(ctx, from, to)
	if err != nil {
		return nil, storageError(err)
	}
	return toApplicationOccurrences(models), nil
}

type attendanceRepositoryAdapter struct {
	repo persistence.AttendanceRepository
}

func newAttendanceRepositoryAdapter(repo persistence.AttendanceRepository) *attendanceRepositoryAdapter {
	return &attendanceRepositoryAdapter{repo: repo}
}

func (a *attendanceRepositoryAdapter) AddAttendance(ctx context.Context, userID, eventID int64) (bool, error) {
	created, err := a.repo.AddAttendance(ctx, userID, eventID)
	return created, storageError(err)
}

func (a *attendanceRepositoryAdapter) RemoveAttendance(ctx context.Context, userID, eventID int64) (bool, error) {
	removed, err := a.repo.RemoveAttendance(ctx, userID, eventID)
	return removed, storageError(err)
}

func (a *attendanceRepositoryAdapter) ListAttendees(ctx context.Context, eventID int64) ([]application.User, error) {
	models, err := a.repo.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, storageError(err)
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type cleanupRepositoryAdapter struct {
	repo persistence.CleanupRepository
}

func newCleanupRepositoryAdapter(repo persistence.CleanupRepository) *cleanupRepositoryAdapter {
	return &cleanupRepositoryAdapter{repo: repo}
}

func (a *cleanupRepositoryAdapter) DeleteFinished(ctx context.Context, now time.Time) (application.SweepResult, error) {
	result, err := a.repo.DeleteFinished(ctx, now)
	if err != nil {
		return application.SweepResult{}, storageError(err)
	}
	return application.SweepResult{
		EventsDeleted:      result.EventsDeleted,
		OccurrencesDeleted: result.OccurrencesDeleted,
	}, nil
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:          model.ID,
		Title:       model.Title,
		Location:    model.Location,
		Description: model.Description,
		Start:       model.Start,
		End:         model.End,
	}
}

func toApplicationEvents(models []persistence.Event) []application.Event {
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:          event.ID,
		Title:       event.Title,
		Location:    event.Location,
		Description: event.Description,
		Start:       event.Start,
		End:         event.End,
	}
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:        model.ID,
		FirstName: model.FirstName,
		LastName:  model.LastName,
		Email:     model.Email,
		IsAdmin:   model.IsAdmin,
	}
}

func toApplicationCredentials(model persistence.User) application.UserCredentials {
	return application.UserCredentials{
		User:         toApplicationUser(model),
		PasswordHash: model.PasswordHash,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		IsAdmin:      user.IsAdmin,
		PasswordHash: passwordHash,
	}
}

func toPersistenceDescriptor(d application.RecurrenceDescriptor) persistence.RecurrenceDescriptor {
	return persistence.RecurrenceDescriptor{
		ID:          d.ID,
		EventID:     d.EventID,
		Cadence:     d.Cadence.String(),
		AnchorStart: d.AnchorStart,
		Cutoff:      d.Cutoff,
	}
}

// toApplicationDescriptor rejects cadences that no longer parse, which would
// mean the row was written by something other than this service.
func toApplicationDescriptor(model persistence.RecurrenceDescriptor) (application.RecurrenceDescriptor, error) {
	cadence, err := recurrence.ParseCadence(model.Cadence)
	if err != nil {
		return application.RecurrenceDescriptor{}, fmt.Errorf("descriptor %d: %w", model.ID, err)
	}
	return application.RecurrenceDescriptor{
		ID:          model.ID,
		EventID:     model.EventID,
		Cadence:     cadence,
		AnchorStart: model.AnchorStart,
		Cutoff:      model.Cutoff,
	}, nil
}

func toApplicationOccurrences(models []persistence.OccurrenceDetail) []application.Occurrence {
	occurrences := make([]application.Occurrence, 0, len(models))
	for _, model := range models {
		occurrences = append(occurrences, application.Occurrence{
			ID:           model.ID,
			DescriptorID: model.DescriptorID,
			EventID:      model.EventID,
			Title:        model.Title,
			Location:     model.Location,
			Description:  model.Description,
			Start:        model.Start,
			End:          model.End,
		})
	}
	return occurrences
}

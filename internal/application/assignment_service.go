package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// AttendanceRepository stores the attendance relation. AddAttendance reports
// false when the pair already existed; RemoveAttendance reports false when
// there was nothing to remove.
type AttendanceRepository interface {
	AddAttendance(ctx context.Context, userID, eventID int64) (bool, error)
	RemoveAttendance(ctx context.Context, userID, eventID int64) (bool, error)
	ListAttendees(ctx context.Context, eventID int64) ([]User, error)
}

// AssignmentService guards assigning users to events.
type AssignmentService struct {
	attendance AttendanceRepository
	events     EventCatalog
	users      UserDirectory
	logger     *slog.Logger
}

// NewAssignmentService wires dependencies for the assignment service.
func NewAssignmentService(attendance AttendanceRepository, events EventCatalog, users UserDirectory) *AssignmentService {
	return NewAssignmentServiceWithLogger(attendance, events, users, nil)
}

// NewAssignmentServiceWithLogger wires dependencies for the assignment service with a logger.
func NewAssignmentServiceWithLogger(attendance AttendanceRepository, events EventCatalog, users UserDirectory, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{
		attendance: attendance,
		events:     events,
		users:      users,
		logger:     defaultLogger(logger),
	}
}

func (s *AssignmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AssignmentService", operation, attrs...)
}

// Assign adds the user to the event. Assigning an existing pair succeeds with
// AssignAlreadyAssigned; the storage uniqueness constraint decides races.
func (s *AssignmentService) Assign(ctx context.Context, principal Principal, eventID, userID int64) (outcome AssignOutcome, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Assign", "principal_id", principal.UserID, "event_id", eventID, "user_id", userID)
	defer func() {
		logResult(ctx, logger, err, "assignment failed", "assignment applied", "outcome", outcome.String())
	}()

	if err = s.authorize(ctx, principal, eventID, userID); err != nil {
		return
	}

	var created bool
	created, err = s.attendance.AddAttendance(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, ErrReferenceMissing) {
			// The event or user was deleted between the checks and the insert.
			err = s.missingReference(ctx, eventID)
			return
		}
		err = storageError("add attendance", err)
		return
	}

	if created {
		return AssignCreated, nil
	}
	return AssignAlreadyAssigned, nil
}

// Unassign removes the user from the event. A missing pair is NotFound(attendanceRecord).
func (s *AssignmentService) Unassign(ctx context.Context, principal Principal, eventID, userID int64) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Unassign", "principal_id", principal.UserID, "event_id", eventID, "user_id", userID)
	defer func() {
		logResult(ctx, logger, err, "unassignment failed", "assignment removed")
	}()

	if err = s.authorize(ctx, principal, eventID, userID); err != nil {
		return
	}

	var removed bool
	removed, err = s.attendance.RemoveAttendance(ctx, userID, eventID)
	if err != nil {
		err = storageError("remove attendance", err)
		return
	}
	if !removed {
		err = notFound(EntityAttendanceRecord)
	}
	return
}

// ListAssignees returns the users assigned to an event. Any authenticated
// principal may read the list.
func (s *AssignmentService) ListAssignees(ctx context.Context, eventID int64) ([]User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	exists, err := s.events.EventExists(ctx, eventID)
	if err != nil {
		return nil, storageError("check event", err)
	}
	if !exists {
		return nil, notFound(EntityEvent)
	}

	users, err := s.attendance.ListAttendees(ctx, eventID)
	if err != nil {
		return nil, storageError("list attendees", err)
	}
	return users, nil
}

func (s *AssignmentService) ready() error {
	if s == nil {
		return fmt.Errorf("AssignmentService is nil")
	}
	if s.attendance == nil || s.events == nil || s.users == nil {
		return fmt.Errorf("assignment repositories not configured")
	}
	return nil
}

// authorize checks event existence, user existence and permission, in that order.
func (s *AssignmentService) authorize(ctx context.Context, principal Principal, eventID, userID int64) error {
	exists, err := s.events.EventExists(ctx, eventID)
	if err != nil {
		return storageError("check event", err)
	}
	if !exists {
		return notFound(EntityEvent)
	}

	exists, err = s.users.UserExists(ctx, userID)
	if err != nil {
		return storageError("check user", err)
	}
	if !exists {
		return notFound(EntityUser)
	}

	if !principal.CanActOnUser(userID) {
		return ErrForbidden
	}
	return nil
}

func (s *AssignmentService) missingReference(ctx context.Context, eventID int64) error {
	exists, err := s.events.EventExists(ctx, eventID)
	if err != nil {
		return storageError("check event", err)
	}
	if !exists {
		return notFound(EntityEvent)
	}
	return notFound(EntityUser)
}

package persistence

import (
	"context"
	"time"
)

// EventRepository exposes CRUD operations for events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	EventExists(ctx context.Context, id int64) (bool, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	ListEventsForUser(ctx context.Context, userID int64, after *time.Time) ([]Event, error)
	UpdateEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, id int64) error
}

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	ListUsers(ctx context.Context, includeAdmins bool) ([]User, error)
	UpdateUser(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) error
}

// RecurrenceRepository stores recurrence descriptors and their occurrences.
type RecurrenceRepository interface {
	// CreateRecurrence writes the descriptor and every occurrence atomically.
	CreateRecurrence(ctx context.Context, descriptor RecurrenceDescriptor, occurrences []Occurrence) (RecurrenceDescriptor, []Occurrence, error)
	ListDescriptors(ctx context.Context) ([]RecurrenceDescriptor, error)
	// ListOccurrences returns occurrences for the given descriptors, or all when ids is empty.
	ListOccurrences(ctx context.Context, descriptorIDs []int64) ([]OccurrenceDetail, error)
	ListOccurrencesBetween(ctx context.Context, from, to time.Time) ([]OccurrenceDetail, error)
}

// AttendanceRepository stores user to event assignments.
type AttendanceRepository interface {
	// AddAttendance reports false when the pair already existed.
	AddAttendance(ctx context.Context, userID, eventID int64) (bool, error)
	// RemoveAttendance reports false when no pair existed.
	RemoveAttendance(ctx context.Context, userID, eventID int64) (bool, error)
	// ListAttendees returns the users assigned to an event.
	ListAttendees(ctx context.Context, eventID int64) ([]User, error)
}

// CleanupRepository removes finished rows.
type CleanupRepository interface {
	DeleteFinished(ctx context.Context, now time.Time) (CleanupResult, error)
}

package application

import (
	"time"

	"github.com/example/eventboard/internal/recurrence"
)

// Event is a scheduled event.
type Event struct {
	ID          int64
	Title       string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title       string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// EventPatch carries the fields of a partial event update. Nil fields are left unchanged.
type EventPatch struct {
	Title       *string
	Location    *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// EventRange narrows event listings. Nil bounds are open.
type EventRange struct {
	From *time.Time
	To   *time.Time
}

// User is a registered account without its credentials.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	IsAdmin   bool
}

// UserCredentials pairs a user with the stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// UserInput captures caller provided fields for a new user.
type UserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	IsAdmin   bool
}

// UserPatch carries the fields of a partial user update. Nil fields are left unchanged.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	IsAdmin   *bool
}

// RecurrenceDescriptor records how an event repeats.
type RecurrenceDescriptor struct {
	ID      int64
	EventID int64
	Cadence recurrence.Cadence
	// AnchorStart is the base start every occurrence is shifted from.
	AnchorStart time.Time
	// Cutoff is exclusive: no occurrence starts at or after it.
	Cutoff time.Time
	// RRule is the RFC 5545 rendering of the cadence and cutoff. It is derived, not stored.
	RRule string
}

// Occurrence is one generated repetition of a base event.
type Occurrence struct {
	ID           int64
	DescriptorID int64
	EventID      int64
	Title        string
	Location     string
	Description  string
	Start        time.Time
	End          time.Time
}

// RepeatEventParams wraps the data required to make an event recur.
type RepeatEventParams struct {
	Principal Principal
	EventID   int64
	Start     time.Time
	End       time.Time
	Cadence   string
	Cutoff    time.Time
}

// RepeatEventResult is the persisted descriptor with its occurrences in generation order.
type RepeatEventResult struct {
	Descriptor  RecurrenceDescriptor
	Occurrences []Occurrence
}

// AssignOutcome reports whether an assignment created a row.
type AssignOutcome int

const (
	// AssignCreated means a new attendance row was written.
	AssignCreated AssignOutcome = iota + 1
	// AssignAlreadyAssigned means the row already existed. It is a success.
	AssignAlreadyAssigned
)

// String returns the wire label for the outcome.
func (o AssignOutcome) String() string {
	switch o {
	case AssignCreated:
		return "assigned"
	case AssignAlreadyAssigned:
		return "already_assigned"
	default:
		return "unknown"
	}
}

// SweepResult counts the rows removed by one cleanup sweep.
type SweepResult struct {
	EventsDeleted      int64
	OccurrencesDeleted int64
}

// CalendarEntryKind distinguishes base events from generated occurrences.
type CalendarEntryKind string

const (
	CalendarEntryEvent      CalendarEntryKind = "event"
	CalendarEntryOccurrence CalendarEntryKind = "occurrence"
)

// CalendarEntry is one item on the merged calendar.
type CalendarEntry struct {
	Kind         CalendarEntryKind
	EventID      int64
	OccurrenceID int64
	DescriptorID int64
	Title        string
	Location     string
	Description  string
	Start        time.Time
	End          time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    int64
	Patch     UserPatch
}

// ChangePasswordParams wraps the data required to replace a password.
type ChangePasswordParams struct {
	Principal Principal
	UserID    int64
	// CurrentPassword is required when users change their own password.
	CurrentPassword string
	NewPassword     string
}

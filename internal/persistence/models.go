package persistence

import "time"

// Event represents a row of the event table.
type Event struct {
	ID          int64
	Title       string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// EventFilter narrows event queries. Nil bounds are open.
type EventFilter struct {
	// EndsAfter keeps events whose end is strictly after the bound.
	EndsAfter *time.Time
	// StartsBefore keeps events whose start is strictly before the bound.
	StartsBefore *time.Time
}

// User represents an account row.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	IsAdmin      bool
	PasswordHash string
}

// RecurrenceDescriptor links a base event to its cadence and exclusive cutoff.
type RecurrenceDescriptor struct {
	ID      int64
	EventID int64
	Cadence string
	// AnchorStart is the base start the occurrences were shifted from.
	AnchorStart time.Time
	Cutoff      time.Time
}

// Occurrence is one generated instance stored under a descriptor.
type Occurrence struct {
	ID           int64
	DescriptorID int64
	Start        time.Time
	End          time.Time
}

// OccurrenceDetail is an occurrence joined with its base event fields.
type OccurrenceDetail struct {
	Occurrence
	EventID     int64
	Title       string
	Location    string
	Description string
}

// CleanupResult reports how many rows a sweep removed.
type CleanupResult struct {
	EventsDeleted      int64
	OccurrencesDeleted int64
}

// Package testfixtures provides deterministic data, clocks and storage
// harnesses shared by package tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/eventboard/internal/application"
	"github.com/example/eventboard/internal/persistence"
)

var (
	userCounter  uint64
	eventCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user that can be materialised for
// application, persistence or HTTP tests. ID stays zero until the row is
// stored.
type UserFixture struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Password  string
	IsAdmin   bool
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a user fixture with a unique email.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	fixture := UserFixture{
		FirstName: "User",
		LastName:  fmt.Sprintf("%03d", idx),
		Email:     fmt.Sprintf("user-%03d@example.com", idx),
		Password:  fmt.Sprintf("password-%03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID sets the stored identifier.
func WithUserID(id int64) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserName overrides the generated first and last name.
func WithUserName(first, last string) UserOption {
	return func(f *UserFixture) {
		f.FirstName = first
		f.LastName = last
	}
}

// WithUserPassword overrides the generated plain text password.
func WithUserPassword(password string) UserOption {
	return func(f *UserFixture) {
		f.Password = password
	}
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:        f.ID,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Email:     f.Email,
		IsAdmin:   f.IsAdmin,
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Email:     f.Email,
		Password:  f.Password,
		IsAdmin:   f.IsAdmin,
	}
}

// Principal returns the principal the fixture authenticates as.
func (f UserFixture) Principal() application.Principal {
	return application.NewPrincipal(f.ID, f.IsAdmin)
}

// Persistence returns the fixture as a persistence.User with the given hash.
func (f UserFixture) Persistence(passwordHash string) persistence.User {
	return persistence.User{
		ID:           f.ID,
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		Email:        f.Email,
		IsAdmin:      f.IsAdmin,
		PasswordHash: passwordHash,
	}
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture represents a deterministic event. Successive fixtures start on
// successive days after ReferenceTime and last one hour.
type EventFixture struct {
	ID          int64
	Title       string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns an event fixture with optional overrides.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.AddDate(0, 0, int(idx))
	fixture := EventFixture{
		Title:    fmt.Sprintf("Event %03d", idx),
		Location: "Main Office",
		Start:    start,
		End:      start.Add(time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID sets the stored identifier.
func WithEventID(id int64) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventTitle overrides the generated title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// WithEventDescription sets the description.
func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) {
		f.Description = description
	}
}

// WithEventWindow sets both start and end.
func WithEventWindow(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventStart moves the event to start, keeping its duration.
func WithEventStart(start time.Time) EventOption {
	return func(f *EventFixture) {
		d := f.End.Sub(f.Start)
		f.Start = start
		f.End = start.Add(d)
	}
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:          f.ID,
		Title:       f.Title,
		Location:    f.Location,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
	}
}

// Input returns the fixture as an application.EventInput.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Title:       f.Title,
		Location:    f.Location,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
	}
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:          f.ID,
		Title:       f.Title,
		Location:    f.Location,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
	}
}

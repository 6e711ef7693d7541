package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memoryStore is an in-memory stand-in for every repository the services use.
// Each method checks its injected error first.
type memoryStore struct {
	mu sync.Mutex

	nextID      int64
	events      map[int64]Event
	users       map[int64]UserCredentials
	descriptors map[int64]RecurrenceDescriptor
	occurrences []Occurrence
	attendance  map[[2]int64]struct{}

	existsErr     error
	createErr     error
	recurrenceErr error
	attendanceErr error
	cleanupErr    error

	cleanupCalls []time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:      make(map[int64]Event),
		users:       make(map[int64]UserCredentials),
		descriptors: make(map[int64]RecurrenceDescriptor),
		attendance:  make(map[[2]int64]struct{}),
	}
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) addEvent(title string, start, end time.Time) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := Event{ID: m.id(), Title: title, Start: start, End: end}
	m.events[e.ID] = e
	return e
}

func (m *memoryStore) addUser(email string, isAdmin bool, hash string) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := User{ID: m.id(), FirstName: "Test", LastName: "User", Email: email, IsAdmin: isAdmin}
	m.users[u.ID] = UserCredentials{User: u, PasswordHash: hash}
	return u
}

func (m *memoryStore) attendanceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attendance)
}

// events

func (m *memoryStore) CreateEvent(ctx context.Context, event Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return Event{}, m.createErr
	}
	event.ID = m.id()
	m.events[event.ID] = event
	return event, nil
}

func (m *memoryStore) GetEvent(ctx context.Context, id int64) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryStore) EventExists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.events[id]
	return ok, nil
}

func (m *memoryStore) ListEvents(ctx context.Context, window EventRange) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0)
	for _, e := range m.events {
		if window.From != nil && !e.End.After(*window.From) {
			continue
		}
		if window.To != nil && !e.Start.Before(*window.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) ListEventsForUser(ctx context.Context, userID int64, after *time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0)
	for key := range m.attendance {
		if key[0] != userID {
			continue
		}
		e := m.events[key[1]]
		if after != nil && e.Start.Before(*after) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateEvent(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; !ok {
		return ErrNotFound
	}
	m.events[event.ID] = event
	return nil
}

func (m *memoryStore) DeleteEvent(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

// users

func (m *memoryStore) CreateUser(ctx context.Context, creds UserCredentials) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return User{}, m.createErr
	}
	for _, existing := range m.users {
		if existing.User.Email == creds.User.Email {
			return User{}, ErrAlreadyExists
		}
	}
	creds.User.ID = m.id()
	m.users[creds.User.ID] = creds
	return creds.User, nil
}

func (m *memoryStore) GetUser(ctx context.Context, id int64) (User, error) {
	creds, err := m.GetUserCredentials(ctx, id)
	return creds.User, err
}

func (m *memoryStore) GetUserCredentials(ctx context.Context, id int64) (UserCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.users[id]
	if !ok {
		return UserCredentials{}, ErrNotFound
	}
	return creds, nil
}

func (m *memoryStore) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return UserCredentials{}, m.existsErr
	}
	for _, creds := range m.users {
		if creds.User.Email == email {
			return creds, nil
		}
	}
	return UserCredentials{}, ErrNotFound
}

func (m *memoryStore) UserExists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

func (m *memoryStore) ListUsers(ctx context.Context, includeAdmins bool) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0)
	for _, creds := range m.users {
		if creds.User.IsAdmin && !includeAdmins {
			continue
		}
		out = append(out, creds.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	creds.User = user
	m.users[user.ID] = creds
	return nil
}

func (m *memoryStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	creds.PasswordHash = hash
	m.users[id] = creds
	return nil
}

func (m *memoryStore) DeleteUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

// recurrences

func (m *memoryStore) CreateRecurrence(ctx context.Context, descriptor RecurrenceDescriptor, occurrences []Occurrence) (RecurrenceDescriptor, []Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recurrenceErr != nil {
		return RecurrenceDescriptor{}, nil, m.recurrenceErr
	}
	for _, d := range m.descriptors {
		if d.EventID == descriptor.EventID {
			return RecurrenceDescriptor{}, nil, ErrAlreadyExists
		}
	}
	descriptor.ID = m.id()
	m.descriptors[descriptor.ID] = descriptor
	stored := make([]Occurrence, 0, len(occurrences))
	for _, o := range occurrences {
		o.ID = m.id()
		o.DescriptorID = descriptor.ID
		stored = append(stored, o)
	}
	m.occurrences = append(m.occurrences, stored...)
	return descriptor, stored, nil
}

func (m *memoryStore) ListDescriptors(ctx context.Context) ([]RecurrenceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecurrenceDescriptor, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) ListOccurrences(ctx context.Context, descriptorIDs []int64) ([]Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(descriptorIDs))
	for _, id := range descriptorIDs {
		want[id] = true
	}
	out := make([]Occurrence, 0)
	for _, o := range m.occurrences {
		if len(want) > 0 && !want[o.DescriptorID] {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryStore) ListOccurrencesBetween(ctx context.Context, from, to time.Time) ([]Occurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Occurrence, 0)
	for _, o := range m.occurrences {
		if o.End.After(from) && o.Start.Before(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

// attendance

func (m *memoryStore) AddAttendance(ctx context.Context, userID, eventID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attendanceErr != nil {
		return false, m.attendanceErr
	}
	key := [2]int64{userID, eventID}
	if _, ok := m.attendance[key]; ok {
		return false, nil
	}
	m.attendance[key] = struct{}{}
	return true, nil
}

func (m *memoryStore) RemoveAttendance(ctx context.Context, userID, eventID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attendanceErr != nil {
		return false, m.attendanceErr
	}
	key := [2]int64{userID, eventID}
	if _, ok := m.attendance[key]; !ok {
		return false, nil
	}
	delete(m.attendance, key)
	return true, nil
}

func (m *memoryStore) ListAttendees(ctx context.Context, eventID int64) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attendanceErr != nil {
		return nil, m.attendanceErr
	}
	out := make([]User, 0)
	for key := range m.attendance {
		if key[1] == eventID {
			out = append(out, m.users[key[0]].User)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// cleanup

func (m *memoryStore) DeleteFinished(ctx context.Context, now time.Time) (SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupCalls = append(m.cleanupCalls, now)
	if m.cleanupErr != nil {
		return SweepResult{}, m.cleanupErr
	}
	anchored := make(map[int64]bool, len(m.descriptors))
	for _, d := range m.descriptors {
		anchored[d.EventID] = true
	}
	var result SweepResult
	for id, e := range m.events {
		if !e.End.After(now) && !anchored[id] {
			delete(m.events, id)
			result.EventsDeleted++
		}
	}
	kept := m.occurrences[:0]
	for _, o := range m.occurrences {
		if !o.End.After(now) {
			result.OccurrencesDeleted++
			continue
		}
		kept = append(kept, o)
	}
	m.occurrences = kept
	return result, nil
}

// plainHasher stores passwords with a prefix so tests avoid argon2 cost.
type plainHasher struct {
	hashErr error
}

func (p plainHasher) Hash(password string) (string, error) {
	if p.hashErr != nil {
		return "", p.hashErr
	}
	return "plain:" + password, nil
}

func (plainHasher) Verify(encoded, password string) error {
	if encoded != "plain:"+password {
		return errPasswordMismatch
	}
	return nil
}

var errStorage = errors.New("storage unavailable")

var (
	adminPrincipal = NewPrincipal(1000, true)
	t0             = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func ptr[T any](v T) *T {
	return &v
}

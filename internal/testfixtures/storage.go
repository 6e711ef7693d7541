package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/eventboard/internal/persistence"
	"github.com/example/eventboard/internal/persistence/sqlstore"
)

// StorageHarness provides repository access backed by a migrated SQLite file
// for integration-style persistence tests.
type StorageHarness struct {
	Store *sqlstore.Store

	Events      persistence.EventRepository
	Users       persistence.UserRepository
	Recurrences persistence.RecurrenceRepository
	Attendance  persistence.AttendanceRepository
	Cleanup     persistence.CleanupRepository
}

// NewStorageHarness opens a temporary database and applies every migration.
// The store is closed through tb.Cleanup.
func NewStorageHarness(tb testing.TB) *StorageHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "eventboard.db")
	store, err := sqlstore.Open(context.Background(), sqlstore.DefaultOptions(sqlstore.DriverSQLite, path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return &StorageHarness{
		Store:       store,
		Events:      store.Events,
		Users:       store.Users,
		Recurrences: store.Recurrences,
		Attendance:  store.Attendance,
		Cleanup:     store.Cleanup,
	}
}

// InsertEvent stores the fixture and returns it with its assigned ID.
func (h *StorageHarness) InsertEvent(tb testing.TB, fixture EventFixture) EventFixture {
	tb.Helper()

	created, err := h.Events.CreateEvent(context.Background(), fixture.Persistence())
	if err != nil {
		tb.Fatalf("failed to insert event %q: %v", fixture.Title, err)
	}
	fixture.ID = created.ID
	return fixture
}

// InsertUser stores the fixture with the given password hash and returns it
// with its assigned ID.
func (h *StorageHarness) InsertUser(tb testing.TB, fixture UserFixture, passwordHash string) UserFixture {
	tb.Helper()

	created, err := h.Users.CreateUser(context.Background(), fixture.Persistence(passwordHash))
	if err != nil {
		tb.Fatalf("failed to insert user %q: %v", fixture.Email, err)
	}
	fixture.ID = created.ID
	return fixture
}

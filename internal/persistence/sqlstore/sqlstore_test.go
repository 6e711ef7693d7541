package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/example/eventboard/internal/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	opts := DefaultOptions(DriverSQLite, filepath.Join(t.TempDir(), "eventboard.db"))
	store, err := Open(context.Background(), opts, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	return store
}

func TestQueryHelper_Rebind(t *testing.T) {
	t.Parallel()

	query := `SELECT 1 FROM event WHERE event_id = ? AND end_date > ? AND title IN (?,?)`

	pg := NewQueryHelper(&Pool{driver: DriverPostgres})
	want := `SELECT 1 FROM event WHERE event_id = $1 AND end_date > $2 AND title IN ($3,$4)`
	if got := pg.rebind(query); got != want {
		t.Fatalf("unexpected postgres query:\n got %s\nwant %s", got, want)
	}

	lite := NewQueryHelper(&Pool{driver: DriverSQLite})
	if got := lite.rebind(query); got != query {
		t.Fatalf("sqlite query should be unchanged, got %s", got)
	}
}

func TestQueryHelper_ArgsEncodeTime(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2024, time.January, 1, 9, 0, 0, 0, tokyo)

	lite := NewQueryHelper(&Pool{driver: DriverSQLite})
	args := lite.args([]any{int64(1), ts})
	if args[0] != int64(1) {
		t.Fatalf("non-time argument changed: %#v", args[0])
	}
	if args[1] != "2024-01-01T00:00:00.000000000Z" {
		t.Fatalf("unexpected sqlite time encoding: %#v", args[1])
	}

	pg := NewQueryHelper(&Pool{driver: DriverPostgres})
	encoded, ok := pg.args([]any{ts})[0].(time.Time)
	if !ok || !encoded.Equal(ts) || encoded.Location() != time.UTC {
		t.Fatalf("expected UTC time.Time for postgres, got %#v", encoded)
	}
}

func TestOptions_DataSourceName(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions(DriverSQLite, "/var/lib/eventboard.db")
	dsn := opts.dataSourceName()
	for _, part := range []string{"/var/lib/eventboard.db?", "foreign_keys", "busy_timeout", "journal_mode"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("expected %q in %q", part, dsn)
		}
	}

	memory := DefaultOptions(DriverSQLite, ":memory:").dataSourceName()
	if strings.Contains(memory, "journal_mode") {
		t.Fatalf("in-memory DSN should not request WAL: %q", memory)
	}

	pg := DefaultOptions(DriverPostgres, "postgres://localhost/eventboard?sslmode=disable")
	if pg.dataSourceName() != pg.DSN {
		t.Fatalf("postgres DSN should be passed through, got %q", pg.dataSourceName())
	}
	if pg.MaxOpenConns <= 1 {
		t.Fatalf("expected postgres pool to allow multiple connections")
	}
}

func TestParseDriver(t *testing.T) {
	t.Parallel()

	cases := map[string]Driver{"": DriverSQLite, "SQLite": DriverSQLite, "postgresql": DriverPostgres, "pq": DriverPostgres}
	for in, want := range cases {
		got, err := ParseDriver(in)
		if err != nil || got != want {
			t.Fatalf("ParseDriver(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDriver("mysql"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	content := `-- header comment
CREATE TABLE a (id INTEGER);

-- second
CREATE INDEX idx_a ON a (id);
`
	got := splitStatements(content)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id INTEGER)" {
		t.Fatalf("unexpected first statement %q", got[0])
	}
}

func TestDBTime_Scan(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, time.February, 29, 10, 30, 0, 0, time.UTC)
	for _, src := range []any{
		"2024-02-29T10:30:00.000000000Z",
		[]byte("2024-02-29T19:30:00+09:00"),
		want.In(time.FixedZone("JST", 9*60*60)),
	} {
		var d dbTime
		if err := d.Scan(src); err != nil {
			t.Fatalf("Scan(%#v) returned error: %v", src, err)
		}
		if !d.Time.Equal(want) || d.Time.Location() != time.UTC {
			t.Fatalf("Scan(%#v) = %v", src, d.Time)
		}
	}

	var d dbTime
	if err := d.Scan(nil); err == nil {
		t.Fatalf("expected error scanning NULL")
	}
}

func TestErrorMapper_MapError(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	cases := []struct {
		name string
		ctx  context.Context
		err  error
		want error
	}{
		{"no rows", context.Background(), sql.ErrNoRows, persistence.ErrNotFound},
		{"sqlite unique", context.Background(), errors.New("constraint failed: UNIQUE constraint failed: app_user.email (2067)"), persistence.ErrDuplicate},
		{"sqlite foreign key", context.Background(), errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), persistence.ErrForeignKeyViolation},
		{"sqlite check", context.Background(), errors.New("constraint failed: CHECK constraint failed: start_date < end_date (275)"), persistence.ErrConstraintViolation},
		{"postgres unique", context.Background(), &pq.Error{Code: "23505"}, persistence.ErrDuplicate},
		{"postgres foreign key", context.Background(), &pq.Error{Code: "23503"}, persistence.ErrForeignKeyViolation},
		{"deadline", context.Background(), fmt.Errorf("query: %w", context.DeadlineExceeded), persistence.ErrTimeout},
		{"expired context", expired, errors.New("interrupted (9)"), persistence.ErrTimeout},
	}

	for _, tc := range cases {
		if got := mapper.MapError(tc.ctx, tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	if mapper.MapError(context.Background(), nil) != nil {
		t.Fatalf("nil should map to nil")
	}
	plain := errors.New("disk I/O error")
	if got := mapper.MapError(context.Background(), plain); got != plain {
		t.Fatalf("unmapped errors should pass through, got %v", got)
	}
}

func TestRetryHelper_WithRetry(t *testing.T) {
	t.Parallel()

	helper := NewRetryHelper(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2})

	attempts := 0
	err := helper.WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("expected success after 3 attempts, got %v after %d", err, attempts)
	}

	attempts = 0
	err = helper.WithRetry(context.Background(), func() error {
		attempts++
		return persistence.ErrDuplicate
	})
	if !errors.Is(err, persistence.ErrDuplicate) || attempts != 1 {
		t.Fatalf("non-retryable error should fail immediately, got %v after %d", err, attempts)
	}
}

func TestMigrator(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	// A second run must be a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}

	migrator := NewMigrator(store.Pool(), nil)
	applied, err := migrator.AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions returned error: %v", err)
	}
	migrations, err := migrator.Migrations()
	if err != nil {
		t.Fatalf("Migrations returned error: %v", err)
	}
	if len(applied) != len(migrations) || applied[0] != "001" {
		t.Fatalf("unexpected applied versions %v for %d migrations", applied, len(migrations))
	}
	if migrations[0].Description != "init" || migrations[0].Checksum == "" {
		t.Fatalf("unexpected migration metadata: %+v", migrations[0])
	}

	pgMigrator := &Migrator{pool: &Pool{driver: DriverPostgres}, files: migrationFiles, dir: "migrations/postgres"}
	pgMigrations, err := pgMigrator.Migrations()
	if err != nil || len(pgMigrations) != len(migrations) {
		t.Fatalf("expected matching postgres migrations, got %d, %v", len(pgMigrations), err)
	}
}

func TestPool_ExpiredContextMapsToTimeout(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := store.Events.GetEvent(ctx, 1)
	if !errors.Is(err, persistence.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRecurrenceRepository_CreateRecurrenceIsAtomic(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	event, err := store.Events.CreateEvent(ctx, persistence.Event{Title: "Standup", Start: start, End: start.Add(15 * time.Minute)})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	occurrences := []persistence.Occurrence{
		{Start: start.AddDate(0, 0, 7), End: start.AddDate(0, 0, 7).Add(15 * time.Minute)},
		{Start: start.AddDate(0, 0, 14), End: start.AddDate(0, 0, 14).Add(15 * time.Minute)},
	}
	descriptor := persistence.RecurrenceDescriptor{EventID: event.ID, Cadence: "weekly", AnchorStart: start, Cutoff: start.AddDate(0, 0, 21)}

	created, stored, err := store.Recurrences.CreateRecurrence(ctx, descriptor, occurrences)
	if err != nil {
		t.Fatalf("CreateRecurrence failed: %v", err)
	}
	if created.ID == 0 || len(stored) != 2 || stored[0].DescriptorID != created.ID || stored[0].ID == 0 {
		t.Fatalf("unexpected created rows: %+v %+v", created, stored)
	}

	// A second descriptor for the same event violates the unique constraint and
	// must not leave any of its occurrences behind.
	_, _, err = store.Recurrences.CreateRecurrence(ctx, descriptor, occurrences)
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// A descriptor for a missing event fails on the foreign key.
	missing := descriptor
	missing.EventID = event.ID + 100
	_, _, err = store.Recurrences.CreateRecurrence(ctx, missing, occurrences)
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}

	// A rejected occurrence rolls back the descriptor inserted before it.
	other, err := store.Events.CreateEvent(ctx, persistence.Event{Title: "Retro", Start: start, End: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	_, err = store.pool.db.ExecContext(ctx, `CREATE TRIGGER reject_occurrence BEFORE INSERT ON recurring_event
		WHEN NEW.start_date > '2024-01-10' BEGIN SELECT RAISE(ABORT, 'occurrence rejected'); END`)
	if err != nil {
		t.Fatalf("failed to install trigger: %v", err)
	}
	_, _, err = store.Recurrences.CreateRecurrence(ctx, persistence.RecurrenceDescriptor{EventID: other.ID, Cadence: "weekly", AnchorStart: start, Cutoff: start.AddDate(0, 0, 21)}, occurrences)
	if err == nil {
		t.Fatalf("expected trigger to abort the recurrence")
	}

	descriptors, err := store.Recurrences.ListDescriptors(ctx)
	if err != nil {
		t.Fatalf("ListDescriptors failed: %v", err)
	}
	if len(descriptors) != 1 || descriptors[0].EventID != event.ID {
		t.Fatalf("expected only the first descriptor to persist, got %+v", descriptors)
	}
	all, err := store.Recurrences.ListOccurrences(ctx, nil)
	if err != nil {
		t.Fatalf("ListOccurrences failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 occurrences after failed writes, got %d", len(all))
	}
}

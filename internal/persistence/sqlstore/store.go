// Package sqlstore implements the persistence repositories on database/sql.
//
// SQLite (modernc.org/sqlite, pure Go) is the default backend; PostgreSQL is
// available through github.com/lib/pq. Queries are written with ? placeholders
// and rebound for PostgreSQL. Timestamps are stored as fixed width UTC text in
// SQLite and TIMESTAMPTZ in PostgreSQL.
package sqlstore

import (
	"context"
	"log/slog"

	"github.com/example/eventboard/internal/persistence"
)

// Store bundles the pool with every repository.
type Store struct {
	pool   *Pool
	logger *slog.Logger

	Events      *EventRepository
	Users       *UserRepository
	Recurrences *RecurrenceRepository
	Attendance  *AttendanceRepository
	Cleanup     *CleanupRepository
}

// Open connects to the configured database and constructs the repositories.
// Callers must run Migrate before serving traffic.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewPool(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:        pool,
		logger:      logger.With("component", "sqlstore", "driver", string(opts.Driver)),
		Events:      NewEventRepository(pool),
		Users:       NewUserRepository(pool),
		Recurrences: NewRecurrenceRepository(pool),
		Attendance:  NewAttendanceRepository(pool),
		Cleanup:     NewCleanupRepository(pool),
	}, nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return NewMigrator(s.pool, s.logger).Run(ctx)
}

// Pool exposes the underlying connection pool.
func (s *Store) Pool() *Pool {
	return s.pool
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

var (
	_ persistence.EventRepository      = (*EventRepository)(nil)
	_ persistence.UserRepository       = (*UserRepository)(nil)
	_ persistence.RecurrenceRepository = (*RecurrenceRepository)(nil)
	_ persistence.AttendanceRepository = (*AttendanceRepository)(nil)
	_ persistence.CleanupRepository    = (*CleanupRepository)(nil)
)

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/eventboard/internal/persistence"
)

// EventRepository implements persistence.EventRepository.
type EventRepository struct {
	pool   *Pool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEventRepository creates a new event repository.
func NewEventRepository(pool *Pool) *EventRepository {
	return &EventRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: pool.mapper,
	}
}

const eventColumns = `event_id, title, location, start_date, end_date, description`

// CreateEvent inserts an event and returns it with the generated identifier.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO event (title, location, start_date, end_date, description)
		VALUES (?, ?, ?, ?, ?)
		RETURNING event_id
	`

	err := r.helper.QueryRow(ctx, r.pool.db, query,
		event.Title,
		event.Location,
		event.Start,
		event.End,
		event.Description,
	).Scan(&event.ID)
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(ctx, err)
	}

	event.Start = event.Start.UTC()
	event.End = event.End.UTC()
	return event, nil
}

// GetEvent retrieves an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (persistence.Event, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	row := r.helper.QueryRow(ctx, r.pool.db, `SELECT `+eventColumns+` FROM event WHERE event_id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, r.mapper.MapError(ctx, err)
	}
	return event, nil
}

// EventExists reports whether an event with the ID is stored.
func (r *EventRepository) EventExists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	var one int
	err := r.helper.QueryRow(ctx, r.pool.db, `SELECT 1 FROM event WHERE event_id = ?`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, r.mapper.MapError(ctx, err)
	}
	return true, nil
}

// ListEvents returns events ordered by start, narrowed by the filter bounds.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	var (
		clauses []string
		args    []any
	)
	if filter.EndsAfter != nil {
		clauses = append(clauses, "end_date > ?")
		args = append(args, *filter.EndsAfter)
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "start_date < ?")
		args = append(args, *filter.StartsBefore)
	}

	query := `SELECT ` + eventColumns + ` FROM event`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_date ASC, event_id ASC`

	rows, err := r.helper.Query(ctx, r.pool.db, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	return r.collect(ctx, rows)
}

// ListEventsForUser returns the events a user attends, optionally only those
// starting at or after the given instant.
func (r *EventRepository) ListEventsForUser(ctx context.Context, userID int64, after *time.Time) ([]persistence.Event, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT e.event_id, e.title, e.location, e.start_date, e.end_date, e.description
		FROM event e
		JOIN attendance_record a ON a.event_id = e.event_id
		WHERE a.user_id = ?`
	args := []any{userID}
	if after != nil {
		query += ` AND e.start_date >= ?`
		args = append(args, *after)
	}
	query += ` ORDER BY e.start_date ASC, e.event_id ASC`

	rows, err := r.helper.Query(ctx, r.pool.db, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	return r.collect(ctx, rows)
}

// UpdateEvent overwrites every mutable column of an existing event.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE event
		SET title = ?, location = ?, start_date = ?, end_date = ?, description = ?
		WHERE event_id = ?
	`

	result, err := r.helper.Exec(ctx, r.pool.db, query,
		event.Title,
		event.Location,
		event.Start,
		event.End,
		event.Description,
		event.ID,
	)
	if err != nil {
		return r.mapper.MapError(ctx, err)
	}

	return requireAffected(result)
}

// DeleteEvent removes an event. Descriptors, occurrences and attendance rows
// cascade with it.
func (r *EventRepository) DeleteEvent(ctx context.Context, id int64) error {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.helper.Exec(ctx, r.pool.db, `DELETE FROM event WHERE event_id = ?`, id)
	if err != nil {
		return r.mapper.MapError(ctx, err)
	}
	return requireAffected(result)
}

func (r *EventRepository) collect(ctx context.Context, rows *sql.Rows) ([]persistence.Event, error) {
	defer rows.Close()

	events := make([]persistence.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, r.mapper.MapError(ctx, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event      persistence.Event
		start, end dbTime
	)
	if err := row.Scan(&event.ID, &event.Title, &event.Location, &start, &end, &event.Description); err != nil {
		return persistence.Event{}, err
	}
	event.Start = start.Time
	event.End = end.Time
	return event, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

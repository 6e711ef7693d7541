package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/eventboard/internal/persistence"
)

// RecurrenceRepository implements persistence.RecurrenceRepository.
type RecurrenceRepository struct {
	pool   *Pool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRecurrenceRepository creates a new recurrence repository.
func NewRecurrenceRepository(pool *Pool) *RecurrenceRepository {
	return &RecurrenceRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: pool.mapper,
	}
}

// CreateRecurrence writes one descriptor and all of its occurrences in a single
// transaction. Any failure leaves no rows behind.
func (r *RecurrenceRepository) CreateRecurrence(ctx context.Context, descriptor persistence.RecurrenceDescriptor, occurrences []persistence.Occurrence) (persistence.RecurrenceDescriptor, []persistence.Occurrence, error) {
	stored := make([]persistence.Occurrence, 0, len(occurrences))

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		err := r.helper.QueryRow(ctx, tx, `
			INSERT INTO recurring_event_suffix (event_id, type, anchor_start_date, end_recurring_date)
			VALUES (?, ?, ?, ?)
			RETURNING recurring_event_suffix_id
		`, descriptor.EventID, descriptor.Cadence, descriptor.AnchorStart, descriptor.Cutoff).Scan(&descriptor.ID)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, r.helper.rebind(`
			INSERT INTO recurring_event (recurring_event_suffix_id, start_date, end_date)
			VALUES (?, ?, ?)
			RETURNING recurring_event_id
		`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, occ := range occurrences {
			occ.DescriptorID = descriptor.ID
			args := r.helper.args([]any{occ.DescriptorID, occ.Start, occ.End})
			if err := stmt.QueryRowContext(ctx, args...).Scan(&occ.ID); err != nil {
				return err
			}
			occ.Start = occ.Start.UTC()
			occ.End = occ.End.UTC()
			stored = append(stored, occ)
		}
		return nil
	})
	if err != nil {
		return persistence.RecurrenceDescriptor{}, nil, err
	}

	descriptor.AnchorStart = descriptor.AnchorStart.UTC()
	descriptor.Cutoff = descriptor.Cutoff.UTC()
	return descriptor, stored, nil
}

// ListDescriptors returns every descriptor ordered by ID.
func (r *RecurrenceRepository) ListDescriptors(ctx context.Context) ([]persistence.RecurrenceDescriptor, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	rows, err := r.helper.Query(ctx, r.pool.db, `
		SELECT recurring_event_suffix_id, event_id, type, anchor_start_date, end_recurring_date
		FROM recurring_event_suffix
		ORDER BY recurring_event_suffix_id ASC
	`)
	if err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	defer rows.Close()

	descriptors := make([]persistence.RecurrenceDescriptor, 0)
	for rows.Next() {
		var (
			d              persistence.RecurrenceDescriptor
			anchor, cutoff dbTime
		)
		if err := rows.Scan(&d.ID, &d.EventID, &d.Cadence, &anchor, &cutoff); err != nil {
			return nil, r.mapper.MapError(ctx, err)
		}
		d.AnchorStart = anchor.Time
		d.Cutoff = cutoff.Time
		descriptors = append(descriptors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	return descriptors, nil
}

const occurrenceDetailQuery = `
	SELECT o.recurring_event_id, o.recurring_event_suffix_id, o.start_date, o.end_date,
		e.event_id, e.title, e.location, e.description
	FROM recurring_event o
	JOIN recurring_event_suffix s ON s.recurring_event_suffix_id = o.recurring_event_suffix_id
	JOIN event e ON e.event_id = s.event_id`

// ListOccurrences returns occurrences joined with their base events. An empty
// descriptorIDs slice selects every occurrence.
func (r *RecurrenceRepository) ListOccurrences(ctx context.Context, descriptorIDs []int64) ([]persistence.OccurrenceDetail, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := occurrenceDetailQuery
	args := make([]any, 0, len(descriptorIDs))
	if len(descriptorIDs) > 0 {
		query += ` WHERE o.recurring_event_suffix_id IN (` + inClause(len(descriptorIDs)) + `)`
		for _, id := range descriptorIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY o.start_date ASC, o.recurring_event_id ASC`

	rows, err := r.helper.Query(ctx, r.pool.db, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	return r.collectDetails(ctx, rows)
}

// ListOccurrencesBetween returns occurrences overlapping [from, to).
func (r *RecurrenceRepository) ListOccurrencesBetween(ctx context.Context, from, to time.Time) ([]persistence.OccurrenceDetail, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := occurrenceDetailQuery + `
		WHERE o.end_date > ? AND o.start_date < ?
		ORDER BY o.start_date ASC, o.recurring_event_id ASC`

	rows, err := r.helper.Query(ctx, r.pool.db, query, from, to)
	if err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	return r.collectDetails(ctx, rows)
}

func (r *RecurrenceRepository) collectDetails(ctx context.Context, rows *sql.Rows) ([]persistence.OccurrenceDetail, error) {
	defer rows.Close()

	details := make([]persistence.OccurrenceDetail, 0)
	for rows.Next() {
		var (
			d          persistence.OccurrenceDetail
			start, end dbTime
		)
		if err := rows.Scan(&d.ID, &d.DescriptorID, &start, &end, &d.EventID, &d.Title, &d.Location, &d.Description); err != nil {
			return nil, r.mapper.MapError(ctx, err)
		}
		d.Start = start.Time
		d.End = end.Time
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	return details, nil
}

package sqlstore

import (
	"context"
	"fmt"

	"github.com/example/eventboard/internal/persistence"
)

// AttendanceRepository implements persistence.AttendanceRepository.
type AttendanceRepository struct {
	pool   *Pool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: pool.mapper,
	}
}

// AddAttendance inserts the (user, event) pair. The composite primary key
// arbitrates concurrent inserts; a conflicting insert affects no rows and is
// reported as created == false.
func (r *AttendanceRepository) AddAttendance(ctx context.Context, userID, eventID int64) (bool, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.helper.Exec(ctx, r.pool.db, `
		INSERT INTO attendance_record (user_id, event_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, userID, eventID)
	if err != nil {
		return false, r.mapper.MapError(ctx, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// RemoveAttendance deletes the (user, event) pair, reporting whether it existed.
func (r *AttendanceRepository) RemoveAttendance(ctx context.Context, userID, eventID int64) (bool, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.helper.Exec(ctx, r.pool.db, `DELETE FROM attendance_record WHERE user_id = ? AND event_id = ?`, userID, eventID)
	if err != nil {
		return false, r.mapper.MapError(ctx, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListAttendees returns the users assigned to an event, ordered by ID.
func (r *AttendanceRepository) ListAttendees(ctx context.Context, eventID int64) ([]persistence.User, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	rows, err := r.helper.Query(ctx, r.pool.db, `
		SELECT u.user_id, u.first_name, u.last_name, u.email, u.is_admin, u.password_hash
		FROM attendance_record a
		JOIN app_user u ON u.user_id = a.user_id
		WHERE a.event_id = ?
		ORDER BY u.user_id ASC
	`, eventID)
	if err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	defer rows.Close()

	users := make([]persistence.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, r.mapper.MapError(ctx, err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(ctx, err)
	}
	return users, nil
}

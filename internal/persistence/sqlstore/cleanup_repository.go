package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/eventboard/internal/persistence"
)

// CleanupRepository implements persistence.CleanupRepository.
type CleanupRepository struct {
	pool   *Pool
	helper *QueryHelper
	retry  *RetryHelper
}

// NewCleanupRepository creates a new cleanup repository.
func NewCleanupRepository(pool *Pool) *CleanupRepository {
	return &CleanupRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// DeleteFinished removes events that ended at or before now and are not the
// base of a recurrence, then prunes finished occurrences. Each DELETE filters
// at execution time, so rows added since any earlier read are respected.
func (r *CleanupRepository) DeleteFinished(ctx context.Context, now time.Time) (persistence.CleanupResult, error) {
	var result persistence.CleanupResult

	err := r.retry.WithRetry(ctx, func() error {
		result = persistence.CleanupResult{}
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			events, err := r.helper.Exec(ctx, tx, `
				DELETE FROM event
				WHERE end_date <= ?
				AND NOT EXISTS (
					SELECT 1 FROM recurring_event_suffix s WHERE s.event_id = event.event_id
				)
			`, now)
			if err != nil {
				return err
			}
			if result.EventsDeleted, err = events.RowsAffected(); err != nil {
				return err
			}

			occurrences, err := r.helper.Exec(ctx, tx, `DELETE FROM recurring_event WHERE end_date <= ?`, now)
			if err != nil {
				return err
			}
			result.OccurrencesDeleted, err = occurrences.RowsAffected()
			return err
		})
	})
	if err != nil {
		return persistence.CleanupResult{}, err
	}
	return result, nil
}


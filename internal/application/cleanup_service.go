package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CleanupRepository removes finished rows. Events that anchor a recurrence are kept.
type CleanupRepository interface {
	DeleteFinished(ctx context.Context, now time.Time) (SweepResult, error)
}

// CleanupService sweeps finished events and occurrences.
type CleanupService struct {
	repo   CleanupRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewCleanupService wires dependencies for the cleanup service.
func NewCleanupService(repo CleanupRepository, now func() time.Time) *CleanupService {
	return NewCleanupServiceWithLogger(repo, now, nil)
}

// NewCleanupServiceWithLogger wires dependencies for the cleanup service with a logger.
func NewCleanupServiceWithLogger(repo CleanupRepository, now func() time.Time, logger *slog.Logger) *CleanupService {
	if now == nil {
		now = time.Now
	}
	return &CleanupService{repo: repo, now: now, logger: defaultLogger(logger)}
}

// Sweep deletes every event whose end is at or before now, except recurrence
// anchors, and every occurrence that has ended.
func (s *CleanupService) Sweep(ctx context.Context) (result SweepResult, err error) {
	if s == nil {
		return SweepResult{}, fmt.Errorf("CleanupService is nil")
	}
	if s.repo == nil {
		return SweepResult{}, fmt.Errorf("cleanup repository not configured")
	}

	now := s.now().UTC()
	logger := serviceLogger(ctx, s.logger, "CleanupService", "Sweep", "now", now)
	defer func() {
		logResult(ctx, logger, err, "cleanup sweep failed", "cleanup sweep finished",
			"events_deleted", result.EventsDeleted,
			"occurrences_deleted", result.OccurrencesDeleted,
		)
	}()

	result, err = s.repo.DeleteFinished(ctx, now)
	if err != nil {
		err = storageError("delete finished", err)
		return SweepResult{}, err
	}
	return result, nil
}

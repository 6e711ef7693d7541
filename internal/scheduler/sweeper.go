// Package scheduler runs the periodic cleanup sweep on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/eventboard/internal/application"
)

const (
	// DefaultSchedule runs the sweep at the top of every hour.
	DefaultSchedule = "0 * * * *"
	// DefaultTimeout bounds a single sweep.
	DefaultTimeout = time.Minute
)

// Cleaner performs one cleanup pass.
type Cleaner interface {
	Sweep(ctx context.Context) (application.SweepResult, error)
}

// Options configures a Sweeper.
type Options struct {
	// Schedule is a standard five field cron expression.
	Schedule string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Sweeper triggers the cleanup service on a cron schedule, independently of
// request serving. A failed run is logged and the next tick tries again.
type Sweeper struct {
	cleaner  Cleaner
	schedule cron.Schedule
	spec     string
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// ValidateSchedule reports whether spec is an accepted cron expression.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// NewSweeper parses the schedule and returns an idle sweeper.
func NewSweeper(cleaner Cleaner, opts Options) (*Sweeper, error) {
	if cleaner == nil {
		return nil, errors.New("scheduler: cleaner is required")
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	schedule, err := cron.ParseStandard(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", opts.Schedule, err)
	}

	return &Sweeper{
		cleaner:  cleaner,
		schedule: schedule,
		spec:     opts.Schedule,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With("component", "scheduler", "schedule", opts.Schedule),
	}, nil
}

// Start registers the sweep and starts the cron loop. Calling Start on a
// running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	logger := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	runCtx := s.ctx
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.RunOnce(runCtx)
	}))
	s.cron.Start()
	s.running = true

	s.logger.InfoContext(ctx, "cleanup sweeper started", "next_run", s.schedule.Next(time.Now()))
}

// Stop halts the cron loop, cancels a sweep in progress and waits for it to
// return or for ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	done := s.cron.Stop()
	s.cancel()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "cleanup sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single sweep bounded by the configured timeout.
func (s *Sweeper) RunOnce(ctx context.Context) (application.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	result, err := s.cleaner.Sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "cleanup sweep failed",
			"error", err,
			"error_kind", application.ErrorKind(err),
			"duration", time.Since(started),
		)
		return application.SweepResult{}, err
	}

	s.logger.InfoContext(ctx, "cleanup sweep completed",
		"events_deleted", result.EventsDeleted,
		"occurrences_deleted", result.OccurrencesDeleted,
		"duration", time.Since(started),
	)
	return result, nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}

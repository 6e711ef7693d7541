package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/example/eventboard/internal/application"
	"github.com/example/eventboard/internal/config"
	httptransport "github.com/example/eventboard/internal/http"
	"github.com/example/eventboard/internal/logging"
	"github.com/example/eventboard/internal/persistence/sqlstore"
	"github.com/example/eventboard/internal/recurrence"
	"github.com/example/eventboard/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	bootstrap := logging.New(os.Stdout, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		bootstrap.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("eventboard stopped with error", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains the HTTP server and the
// cleanup sweeper.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}

	a.sweeper.Start(ctx)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("eventboard API listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
		logger.Error("failed to shutdown server", "error", serr)
	}
	if cerr := a.Close(shutdownCtx); cerr != nil {
		logger.Error("failed to release resources", "error", cerr)
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type appOptions struct {
	// hasher overrides the argon2id hasher built from the default parameters.
	hasher application.PasswordHasher
	now    func() time.Time
}

// app is the wired service: storage, application services, the HTTP handler
// chain and the cleanup sweeper.
type app struct {
	store   *sqlstore.Store
	handler http.Handler
	sweeper *scheduler.Sweeper
	cleanup *application.CleanupService
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	if opts.hasher == nil {
		opts.hasher = application.NewArgon2idHasher(application.DefaultArgon2idParams)
	}
	if opts.now == nil {
		opts.now = time.Now
	}

	driver, err := sqlstore.ParseDriver(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	storeOpts := sqlstore.DefaultOptions(driver, cfg.DBDSN)
	storeOpts.QueryTimeout = cfg.QueryTimeout

	store, err := sqlstore.Open(ctx, storeOpts, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	events := newEventRepositoryAdapter(store.Events)
	users := newUserRepositoryAdapter(store.Users)
	recurrences := newRecurrenceRepositoryAdapter(store.Recurrences)
	attendance := newAttendanceRepositoryAdapter(store.Attendance)
	cleanupRepo := newCleanupRepositoryAdapter(store.Cleanup)

	eventService := application.NewEventServiceWithLogger(events, users, logger)
	recurrenceService := application.NewRecurrenceServiceWithLogger(recurrences, events, recurrence.NewEngine(loc), logger)
	assignmentService := application.NewAssignmentServiceWithLogger(attendance, events, users, logger)
	userService := application.NewUserServiceWithLogger(users, opts.hasher, logger)
	authService := application.NewAuthServiceWithLogger(users, opts.hasher, logger)
	calendarService := application.NewCalendarServiceWithLogger(events, recurrences, logger)
	cleanupService := application.NewCleanupServiceWithLogger(cleanupRepo, opts.now, logger)

	if cfg.SeedAdmin() {
		created, err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed administrator: %w", err)
		}
		if created {
			logger.Info("bootstrap administrator created", "email", cfg.AdminEmail)
		}
	}

	sweeper, err := scheduler.NewSweeper(cleanupService, scheduler.Options{
		Schedule: cfg.CleanupSchedule,
		Timeout:  cfg.CleanupTimeout,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(logger),
		Events:         httptransport.NewEventHandler(eventService, logger),
		Recurrences:    httptransport.NewRecurrenceHandler(recurrenceService, logger),
		Assignments:    httptransport.NewAssignmentHandler(assignmentService, logger),
		Users:          httptransport.NewUserHandler(userService, logger),
		Calendar:       httptransport.NewCalendarHandler(calendarService, logger),
		Authenticator:  authService,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		Health:         store.Ping,
	})

	return &app{
		store:   store,
		handler: handler,
		sweeper: sweeper,
		cleanup: cleanupService,
		logger:  logger,
	}, nil
}

// Close stops the sweeper before releasing the database pool.
func (a *app) Close(ctx context.Context) error {
	serr := a.sweeper.Stop(ctx)
	cerr := a.store.Close()
	return errors.Join(serr, cerr)
}

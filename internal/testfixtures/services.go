package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/eventboard/internal/application"
	"github.com/example/eventboard/internal/recurrence"
)

// LightArgon2idParams keep hashing fast in tests while still exercising argon2id.
var LightArgon2idParams = application.Argon2idParams{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
}

// ServiceFactory assists tests with constructing application services using
// a controllable clock and a cheap password hasher.
type ServiceFactory struct {
	Clock  *Clock
	Hasher application.PasswordHasher
	Logger *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:  NewClock(time.Time{}),
		Hasher: application.NewArgon2idHasher(LightArgon2idParams),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.Hasher == nil {
		factory.Hasher = application.NewArgon2idHasher(LightArgon2idParams)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithHasher overrides the password hasher used by the factory.
func WithHasher(hasher application.PasswordHasher) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Hasher = hasher
	}
}

// WithLogger sets the logger passed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// RecurrenceServiceDeps captures dependencies for constructing a recurrence service.
type RecurrenceServiceDeps struct {
	Recurrences application.RecurrenceRepository
	Events      application.EventCatalog
	// Limit caps expansion; zero keeps recurrence.MaxOccurrences.
	Limit int
}

// NewRecurrenceService builds a recurrence service expanding in UTC.
func (f *ServiceFactory) NewRecurrenceService(deps RecurrenceServiceDeps) *application.RecurrenceService {
	engine := recurrence.NewEngine(time.UTC)
	if deps.Limit > 0 {
		engine = engine.WithLimit(deps.Limit)
	}
	return application.NewRecurrenceServiceWithLogger(deps.Recurrences, deps.Events, engine, f.Logger)
}

// NewUserService builds a user service with the factory hasher.
func (f *ServiceFactory) NewUserService(users application.UserRepository) *application.UserService {
	return application.NewUserServiceWithLogger(users, f.Hasher, f.Logger)
}

// NewAuthService builds an auth service with the factory hasher.
func (f *ServiceFactory) NewAuthService(credentials application.CredentialStore) *application.AuthService {
	return application.NewAuthServiceWithLogger(credentials, f.Hasher, f.Logger)
}

// NewCleanupService builds a cleanup service that reads the factory clock.
func (f *ServiceFactory) NewCleanupService(repo application.CleanupRepository) *application.CleanupService {
	return application.NewCleanupServiceWithLogger(repo, f.Clock.NowFunc(), f.Logger)
}

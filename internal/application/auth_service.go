package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// CredentialStore exposes the credential lookups required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	CreateUser(ctx context.Context, user UserCredentials) (User, error)
}

// AuthService checks basic-auth credentials and seeds the bootstrap administrator.
type AuthService struct {
	credentials CredentialStore
	hasher      PasswordHasher
	logger      *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, hasher PasswordHasher) *AuthService {
	return NewAuthServiceWithLogger(credentials, hasher, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, hasher PasswordHasher, logger *slog.Logger) *AuthService {
	if hasher == nil {
		hasher = NewArgon2idHasher(DefaultArgon2idParams)
	}
	return &AuthService{credentials: credentials, hasher: hasher, logger: defaultLogger(logger)}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate verifies an email and password pair and returns the caller's principal.
// Unknown emails and wrong passwords both yield ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "authentication succeeded", "user_id", principal.UserID)
	}()

	if email == "" || password == "" {
		err = ErrUnauthenticated
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthenticated
			return
		}
		err = storageError("get credentials", err)
		return
	}

	if verr := s.hasher.Verify(creds.PasswordHash, password); verr != nil {
		err = ErrUnauthenticated
		return
	}

	principal = NewPrincipal(creds.User.ID, creds.User.IsAdmin)
	return
}

// EnsureAdmin creates an administrator with the given credentials unless a user
// with that email already exists. It reports whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (created bool, err error) {
	if s == nil {
		return false, fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil {
		return false, fmt.Errorf("credential store not configured")
	}

	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "EnsureAdmin", "email", email)

	_, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	switch {
	case err == nil:
		logger.DebugContext(ctx, "bootstrap admin already present")
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, storageError("get credentials", err)
	}

	vErr := validateProfile("Admin", "User", email)
	vErr.merge(validatePassword("password", password))
	if vErr.HasErrors() {
		return false, vErr
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.credentials.CreateUser(ctx, UserCredentials{
		User:         User{FirstName: "Admin", LastName: "User", Email: email, IsAdmin: true},
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return false, nil
		}
		return false, storageError("create admin", err)
	}

	logger.InfoContext(ctx, "bootstrap admin created", "user_id", user.ID)
	return true, nil
}

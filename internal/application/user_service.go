package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxNameLength     = 100
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user UserCredentials) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserCredentials(ctx context.Context, id int64) (UserCredentials, error)
	ListUsers(ctx context.Context, includeAdmins bool) ([]User, error)
	UpdateUser(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) error
}

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewUserService wires dependencies for the user service. A nil hasher uses argon2id defaults.
func NewUserService(users UserRepository, hasher PasswordHasher) *UserService {
	return NewUserServiceWithLogger(users, hasher, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a logger.
func NewUserServiceWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger) *UserService {
	if hasher == nil {
		hasher = NewArgon2idHasher(DefaultArgon2idParams)
	}
	return &UserService{users: users, hasher: hasher, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input, hashes the password and persists a new user for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		logResult(ctx, logger, err, "user creation failed", "user created", "user_id", user.ID)
	}()

	if !params.Principal.IsAdmin() {
		err = ErrForbidden
		return
	}

	normalized := normalizeUserInput(params.Input)
	vErr := validateProfile(normalized.FirstName, normalized.LastName, normalized.Email)
	vErr.merge(validatePassword("password", normalized.Password))
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hasher.Hash(normalized.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	user, err = s.users.CreateUser(ctx, UserCredentials{
		User: User{
			FirstName: normalized.FirstName,
			LastName:  normalized.LastName,
			Email:     normalized.Email,
			IsAdmin:   normalized.IsAdmin,
		},
		PasswordHash: hash,
	})
	if err != nil {
		err = storageError("create user", err)
		return User{}, err
	}
	return user, nil
}

// GetUser returns a single user.
func (s *UserService) GetUser(ctx context.Context, id int64) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, notFound(EntityUser)
		}
		return User{}, storageError("get user", err)
	}
	return user, nil
}

// ListUsers returns users ordered by ID. Administrators are only included when
// an administrator asks for them.
func (s *UserService) ListUsers(ctx context.Context, principal Principal, includeAdmins bool) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return nil, fmt.Errorf("user repository not configured")
	}

	users, err := s.users.ListUsers(ctx, includeAdmins && principal.IsAdmin())
	if err != nil {
		return nil, storageError("list users", err)
	}
	return users, nil
}

// UpdateUser applies a partial profile update. Users may edit themselves;
// only administrators may edit others or change the admin flag.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "UpdateUser", "principal_id", params.Principal.UserID, "user_id", params.UserID)
	defer func() {
		logResult(ctx, logger, err, "user update failed", "user updated")
	}()

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = notFound(EntityUser)
			return
		}
		err = storageError("get user", err)
		return
	}

	if !params.Principal.CanActOnUser(params.UserID) {
		err = ErrForbidden
		return
	}
	if params.Patch.IsAdmin != nil && *params.Patch.IsAdmin != existing.IsAdmin && !params.Principal.IsAdmin() {
		err = ErrForbidden
		return
	}

	updated := applyUserPatch(existing, params.Patch)
	if vErr := validateProfile(updated.FirstName, updated.LastName, updated.Email); vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.users.UpdateUser(ctx, updated); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = notFound(EntityUser)
		} else {
			err = storageError("update user", err)
		}
		return User{}, err
	}
	return updated, nil
}

// DeleteUser removes a user for administrators. Their attendance goes with them.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, id int64) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteUser", "principal_id", principal.UserID, "user_id", id)
	defer func() {
		logResult(ctx, logger, err, "user deletion failed", "user deleted")
	}()

	if !principal.IsAdmin() {
		return ErrForbidden
	}

	if err = s.users.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(EntityUser)
		}
		return storageError("delete user", err)
	}
	return nil
}

// ChangePassword replaces a password. Users changing their own password must
// supply the current one; administrators may reset anyone's.
func (s *UserService) ChangePassword(ctx context.Context, params ChangePasswordParams) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "ChangePassword", "principal_id", params.Principal.UserID, "user_id", params.UserID)
	defer func() {
		logResult(ctx, logger, err, "password change failed", "password changed")
	}()

	var creds UserCredentials
	creds, err = s.users.GetUserCredentials(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = notFound(EntityUser)
			return
		}
		err = storageError("get user", err)
		return
	}

	if !params.Principal.CanActOnUser(params.UserID) {
		err = ErrForbidden
		return
	}

	vErr := validatePassword("newPassword", params.NewPassword)
	if !params.Principal.IsAdmin() {
		if params.CurrentPassword == "" {
			vErr.add("currentPassword", "current password is required")
		} else if s.hasher.Verify(creds.PasswordHash, params.CurrentPassword) != nil {
			vErr.add("currentPassword", "current password is incorrect")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hasher.Hash(params.NewPassword)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	if err = s.users.UpdatePassword(ctx, params.UserID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = notFound(EntityUser)
		} else {
			err = storageError("update password", err)
		}
	}
	return
}

func applyUserPatch(existing User, patch UserPatch) User {
	updated := existing
	if patch.FirstName != nil {
		updated.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		updated.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Email != nil {
		updated.Email = normalizeEmail(*patch.Email)
	}
	if patch.IsAdmin != nil {
		updated.IsAdmin = *patch.IsAdmin
	}
	return updated
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     normalizeEmail(input.Email),
		Password:  input.Password,
		IsAdmin:   input.IsAdmin,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateProfile(firstName, lastName, email string) *ValidationError {
	vErr := &ValidationError{}

	if firstName == "" {
		vErr.add("firstName", "first name is required")
	} else if utf8.RuneCountInString(firstName) > maxNameLength {
		vErr.add("firstName", fmt.Sprintf("first name must be at most %d characters", maxNameLength))
	}

	if lastName == "" {
		vErr.add("lastName", "last name is required")
	} else if utf8.RuneCountInString(lastName) > maxNameLength {
		vErr.add("lastName", fmt.Sprintf("last name must be at most %d characters", maxNameLength))
	}

	if email == "" {
		vErr.add("email", "email is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		vErr.add("email", "email is invalid")
	}

	return vErr
}

func validatePassword(field, password string) *ValidationError {
	vErr := &ValidationError{}
	if utf8.RuneCountInString(password) < minPasswordLength {
		vErr.add(field, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return vErr
}

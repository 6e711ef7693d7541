package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/eventboard/internal/persistence"
)

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	pool   *Pool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: pool.mapper,
	}
}

const userColumns = `user_id, first_name, last_name, email, is_admin, password_hash`

// CreateUser inserts a user and returns it with the generated identifier.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	if user.PasswordHash == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}

	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	user.Email = normalizeEmail(user.Email)

	query := `
		INSERT INTO app_user (first_name, last_name, email, is_admin, password_hash)
		VALUES (?, ?, ?, ?, ?)
		RETURNING user_id
	`

	err := r.helper.QueryRow(ctx, r.pool.db, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.IsAdmin,
		user.PasswordHash,
	).Scan(&user.ID)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(ctx, err)
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	row := r.helper.QueryRow(ctx, r.pool.db, `SELECT `+userColumns+` FROM app_user WHERE user_id = ?`, id)
	return r.scanOne(ctx, row)
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	row := r.helper.QueryRow(ctx, r.pool.db, `SELECT `+userColumns+` FROM app_user WHERE email = ?`, normalized)
	return r.scanOne(ctx, row)
}

// UserExists reports whether a user with the ID is stored.
func (r *UserRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	var one int
	err := r.helper.QueryRow(ctx, r.pool.db, `SELECT 1 FROM app_user WHERE user_id = ?`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, r.mapper.MapError(ctx, err)
	}
	return true, nil
}

// ListUsers returns users ordered by ID. Administrators are omitted unless requested.
func (r *UserRepository) ListUsers(ctx context.Context, includeAdmins bool) ([]persistence.User, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM app_user`
	var args []any
	if !includeAdmins {
		query += ` WHERE is_admin = ?`
		args = append(args, false)
	}
	query += ` ORDER BY user_id ASC`

	rows, err := r.helper.Query(ctx, r.pool.db, query, args...)
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

// UpdateUser updates profile columns. The password hash is left untouched.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE app_user
		SET first_name = ?, last_name = ?, email = ?, is_admin = ?
		WHERE user_id = ?
	`

	result, err := r.helper.Exec(ctx, r.pool.db, query,
		user.FirstName,
		user.LastName,
		normalizeEmail(user.Email),
		user.IsAdmin,
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(ctx, err)
	}
	return requireAffected(result)
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if passwordHash == "" {
		return persistence.ErrConstraintViolation
	}

	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.helper.Exec(ctx, r.pool.db, `UPDATE app_user SET password_hash = ? WHERE user_id = ?`, passwordHash, id)
	if err != nil {
		return r.mapper.MapError(ctx, err)
	}
	return requireAffected(result)
}

// DeleteUser removes a user. Attendance rows cascade with it.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.helper.Exec(ctx, r.pool.db, `DELETE FROM app_user WHERE user_id = ?`, id)
	if err != nil {
		return r.mapper.MapError(ctx, err)
	}
	return requireAffected(result)
}

func (r *UserRepository) scanOne(ctx context.Context, row *sql.Row) (persistence.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.mapper.MapError(ctx, err)
	}
	return user, nil
}

func scanUser(row rowScanner) (persistence.User, error) {
	var user persistence.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.IsAdmin,
		&user.PasswordHash,
	)
	return user, err
}

// normalizeEmail normalizes email addresses for consistent storage and lookup.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique or primary key constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKeyViolation is returned when a write references a missing parent row.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConstraintViolation is returned when a CHECK or NOT NULL constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrTimeout is returned when a storage operation exceeds its deadline.
	ErrTimeout = errors.New("persistence: operation timed out")
)

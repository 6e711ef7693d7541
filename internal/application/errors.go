package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/eventboard/internal/recurrence"
)

var (
	// ErrUnauthenticated is returned when credentials are missing or do not match a user.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a uniqueness constraint rejects a write.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrTimeout is returned when storage did not answer within the configured deadline.
	// Callers may retry.
	ErrTimeout = errors.New("application: storage timeout")
	// ErrReferenceMissing is returned by repositories when a row references a record
	// that disappeared before the write.
	ErrReferenceMissing = errors.New("application: referenced record missing")
	// ErrUnsupportedCadence is returned for a repeat interval outside the supported set.
	ErrUnsupportedCadence = recurrence.ErrUnsupportedCadence
)

// Entity names reported by NotFoundError.
const (
	EntityEvent            = "event"
	EntityUser             = "user"
	EntityAttendanceRecord = "attendanceRecord"
	EntityRecurrence       = "recurrence"
)

// NotFoundError names the entity that was missing. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e == nil || e.Entity == "" {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("application: %s not found", e.Entity)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

// PersistenceError wraps an unexpected storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("application: %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying storage error.
func (e *PersistenceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// storageError classifies a repository error. Application sentinels and
// validation errors pass through; anything else becomes a PersistenceError.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrReferenceMissing) {
		return err
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	var pErr *PersistenceError
	if errors.As(err, &pErr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned for CHECK and NOT NULL violations and invalid input.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced row is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrBusy is returned when the database stayed locked past the retry budget.
	ErrBusy = errors.New("persistence: database busy")
)

// DuplicateError names the column whose unique constraint rejected a write.
type DuplicateError struct {
	Table  string
	Column string
}

func (e *DuplicateError) Error() string {
	if e.Column == "" {
		return ErrDuplicate.Error()
	}
	return fmt.Sprintf("persistence: duplicate %s.%s", e.Table, e.Column)
}

// Is reports ErrDuplicate so callers can match either form.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

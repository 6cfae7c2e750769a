package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration execution failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	// ErrVersionConflict reports a gap in the sequence or an applied version with no file.
	ErrVersionConflict  = errors.New("migration version conflict")
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrChecksumMismatch reports an applied migration whose file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// Error records which migration step failed. File is empty for steps that
// only touch the schema_migrations bookkeeping.
type Error struct {
	Version string
	File    string
	Step    string
	Err     error
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Version != "" && e.File != "":
		where = fmt.Sprintf("migration %s (%s)", e.Version, e.File)
	case e.Version != "":
		where = "migration " + e.Version
	case e.File != "":
		where = "migration source " + e.File
	default:
		where = "migration"
	}
	return fmt.Sprintf("%s: %s: %v", where, e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fileError(version, file, step string, err error) *Error {
	return &Error{Version: version, File: file, Step: step, Err: err}
}

func dbError(version, step string, err error) *Error {
	return &Error{Version: version, Step: step, Err: err}
}

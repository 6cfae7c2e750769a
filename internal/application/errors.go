package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrUnauthenticated is returned when no valid session backs the request.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when the current state forbids the operation,
	// e.g. deleting a lot with occupied spots.
	ErrConflict = errors.New("application: conflict")

	// ErrLotFull is returned when a lot has no available spot.
	ErrLotFull = errors.New("application: lot is full")
	// ErrLotInactive is returned when reserving in a lot an admin has disabled.
	ErrLotInactive = errors.New("application: lot is inactive")
	// ErrOutsideOperatingHours is returned when reserving outside the lot's opening window.
	ErrOutsideOperatingHours = errors.New("application: outside operating hours")
	// ErrVehicleAlreadyParked is returned when the vehicle already has an open reservation.
	ErrVehicleAlreadyParked = errors.New("application: vehicle already parked")
	// ErrReservationNotActive is returned when releasing a reservation that already ended.
	ErrReservationNotActive = errors.New("application: reservation not active")
	// ErrQuoteExpired is returned when a release quote token is unknown, stale or for another reservation.
	ErrQuoteExpired = errors.New("application: release quote expired")
	// ErrPersistence wraps storage failures; the operation was rolled back and may be retried.
	ErrPersistence = errors.New("application: persistence failure")

	// ErrInvalidCredentials is returned when login data does not match an account.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountInactive is returned when an inactive account without a pending deletion logs in.
	ErrAccountInactive = errors.New("application: account inactive")
	// ErrAccountPermanentlyDeleted is returned once an account's deletion deadline has passed.
	ErrAccountPermanentlyDeleted = errors.New("application: account permanently deleted")
	// ErrSessionExpired is returned for sessions past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for sessions that were logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
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

func fieldError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// domainErrors are passed through unchanged by persistenceFailure.
var domainErrors = []error{
	ErrUnauthorized, ErrUnauthenticated, ErrNotFound, ErrAlreadyExists, ErrConflict,
	ErrLotFull, ErrLotInactive, ErrOutsideOperatingHours, ErrVehicleAlreadyParked,
	ErrReservationNotActive, ErrQuoteExpired, ErrPersistence,
	ErrInvalidCredentials, ErrAccountInactive, ErrAccountPermanentlyDeleted,
	ErrSessionExpired, ErrSessionRevoked,
}

// persistenceFailure classifies an error returned by a unit of work: domain
// errors raised inside the transaction pass through, anything else is a
// storage failure wrapped in ErrPersistence.
func persistenceFailure(err error) error {
	if err == nil {
		return nil
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

package application

import (
	"cmp"
	"context"
	"errors"
	"log/slog"

	"github.com/example/parking-manager/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return cmp.Or(logger, slog.Default())
}

// serviceLogger tags the request logger (or base) with the service, the
// operation and any extra attrs.
func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := cmp.Or(logging.FromContext(ctx), base, slog.Default())
	pairs := append(make([]any, 0, 4+len(attrs)), "service", serviceName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	return logger.With(append(pairs, attrs...)...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrLotFull):
		return "lot_full"
	case errors.Is(err, ErrLotInactive):
		return "lot_inactive"
	case errors.Is(err, ErrOutsideOperatingHours):
		return "outside_operating_hours"
	case errors.Is(err, ErrVehicleAlreadyParked):
		return "vehicle_already_parked"
	case errors.Is(err, ErrReservationNotActive):
		return "reservation_not_active"
	case errors.Is(err, ErrQuoteExpired):
		return "quote_expired"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountInactive):
		return "account_inactive"
	case errors.Is(err, ErrAccountPermanentlyDeleted):
		return "account_permanently_deleted"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrSessionRevoked):
		return "session_revoked"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

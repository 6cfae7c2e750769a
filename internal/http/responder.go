package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/parking-manager/internal/application"
)

var (
	errBadRequestBody      = errors.New("request body is not valid JSON")
	errInvalidLotID        = errors.New("invalid lot id")
	errInvalidSpotID       = errors.New("invalid spot id")
	errInvalidReservation  = errors.New("invalid reservation id")
	errInvalidUserID       = errors.New("invalid user id")
	errInvalidVehicle      = errors.New("invalid vehicle number")
	errMissingSessionToken = errors.New("a session token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// serviceErrors maps application sentinels to a status and a stable code.
// Order matters: the first match wins.
var serviceErrors = []struct {
	target error
	status int
	code   string
}{
	{application.ErrInvalidCredentials, http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"},
	{application.ErrSessionExpired, http.StatusUnauthorized, "AUTH_SESSION_EXPIRED"},
	{application.ErrSessionRevoked, http.StatusUnauthorized, "AUTH_SESSION_REVOKED"},
	{application.ErrUnauthenticated, http.StatusUnauthorized, "AUTH_REQUIRED"},
	{application.ErrAccountPermanentlyDeleted, http.StatusForbidden, "ACCOUNT_DELETED"},
	{application.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE"},
	{application.ErrUnauthorized, http.StatusForbidden, "AUTH_FORBIDDEN"},
	{application.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{application.ErrLotFull, http.StatusConflict, "LOT_FULL"},
	{application.ErrLotInactive, http.StatusConflict, "LOT_INACTIVE"},
	{application.ErrOutsideOperatingHours, http.StatusConflict, "LOT_CLOSED"},
	{application.ErrVehicleAlreadyParked, http.StatusConflict, "VEHICLE_ALREADY_PARKED"},
	{application.ErrReservationNotActive, http.StatusConflict, "RESERVATION_NOT_ACTIVE"},
	{application.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{application.ErrConflict, http.StatusConflict, "CONFLICT"},
	{application.ErrQuoteExpired, http.StatusGone, "QUOTE_EXPIRED"},
	{application.ErrPersistence, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   statusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		})
		return
	}

	for _, candidate := range serviceErrors {
		if errors.Is(err, candidate.target) {
			if candidate.status == http.StatusServiceUnavailable {
				w.Header().Set("Retry-After", "1")
			}
			r.writeJSON(ctx, w, candidate.status, errorResponse{
				ErrorCode: candidate.code,
				Message:   candidate.target.Error(),
			})
			return
		}
	}

	r.loggerFor(ctx).ErrorContext(ctx, "unmapped service error", "error", err)
	r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
		ErrorCode: "INTERNAL",
		Message:   statusMessage(http.StatusInternalServerError),
	})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusUnauthorized:
		return "authentication is required"
	case http.StatusForbidden:
		return "you are not allowed to perform this operation"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current state of the resource"
	case http.StatusUnprocessableEntity:
		return "the request contains invalid fields"
	default:
		return "an internal error occurred"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

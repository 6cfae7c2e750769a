package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// VehicleService manages registered vehicles outside of reservations.
type VehicleService struct {
	store  ParkingStore
	now    func() time.Time
	logger *slog.Logger
}

// NewVehicleService constructs a vehicle service with the provided dependencies.
func NewVehicleService(store ParkingStore, now func() time.Time, logger *slog.Logger) *VehicleService {
	if now == nil {
		now = time.Now
	}
	return &VehicleService{store: store, now: now, logger: defaultLogger(logger)}
}

func (s *VehicleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "VehicleService", operation, attrs...)
}

// GetVehicle returns a vehicle to its owner or an administrator.
func (s *VehicleService) GetVehicle(ctx context.Context, principal Principal, number string) (Vehicle, error) {
	if s == nil {
		return Vehicle{}, fmt.Errorf("VehicleService is nil")
	}
	if principal.UserID == "" {
		return Vehicle{}, ErrUnauthenticated
	}
	vehicle, err := s.store.GetVehicle(ctx, NormalizeVehicleNumber(number))
	if err != nil {
		return Vehicle{}, mapStoreError(err)
	}
	if err := authorizeUser(principal, vehicle.UserID); err != nil {
		return Vehicle{}, err
	}
	return vehicle, nil
}

// RegisterVehicle records a vehicle for a user. Regular users may only
// register their own vehicles.
func (s *VehicleService) RegisterVehicle(ctx context.Context, params RegisterVehicleParams) (vehicle Vehicle, err error) {
	if s == nil {
		err = fmt.Errorf("VehicleService is nil")
		return
	}

	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		userID = params.Principal.UserID
	}
	number := NormalizeVehicleNumber(params.Vehicle.VehicleNumber)
	logger := s.loggerWith(ctx, "RegisterVehicle",
		"principal_id", params.Principal.UserID,
		"user_id", userID,
		"vehicle_number", number,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register vehicle", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "vehicle registered")
	}()

	if err = authorizeUser(params.Principal, userID); err != nil {
		return
	}

	vehicle = Vehicle{
		VehicleNumber: number,
		UserID:        userID,
		Brand:         strings.TrimSpace(params.Vehicle.Brand),
		Model:         strings.TrimSpace(params.Vehicle.Model),
		Color:         strings.TrimSpace(params.Vehicle.Color),
		FuelType:      strings.TrimSpace(params.Vehicle.FuelType),
		CreatedAt:     s.now(),
	}
	vErr := &ValidationError{}
	if vehicle.VehicleNumber == "" {
		vErr.add("vehicle_number", "vehicle number is required")
	}
	if vehicle.Brand == "" {
		vErr.add("brand", "brand is required")
	}
	if vehicle.Model == "" {
		vErr.add("model", "model is required")
	}
	if vehicle.Color == "" {
		vErr.add("color", "color is required")
	}
	if vehicle.FuelType == "" {
		vErr.add("fuel_type", "fuel type is required")
	}
	if vErr.HasErrors() {
		err = vErr
		vehicle = Vehicle{}
		return
	}

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		if txErr := requireOwner(ctx, tx, userID); txErr != nil {
			return txErr
		}
		if _, txErr := tx.GetVehicle(ctx, number); txErr == nil {
			return fmt.Errorf("%w: vehicle %s is already registered", ErrAlreadyExists, number)
		} else if !isNotFound(txErr) {
			return txErr
		}
		if txErr := tx.CreateVehicle(ctx, vehicle); txErr != nil {
			return txErr
		}
		var txErr error
		vehicle, txErr = tx.GetVehicle(ctx, number)
		return txErr
	})
	if err != nil {
		err = mapStoreError(err)
		vehicle = Vehicle{}
	}
	return
}

// UpdateVehicle changes the attributes of a vehicle. Only administrators may
// hand a vehicle to another owner.
func (s *VehicleService) UpdateVehicle(ctx context.Context, params UpdateVehicleParams) (vehicle Vehicle, err error) {
	if s == nil {
		err = fmt.Errorf("VehicleService is nil")
		return
	}

	number := NormalizeVehicleNumber(params.VehicleNumber)
	logger := s.loggerWith(ctx, "UpdateVehicle",
		"principal_id", params.Principal.UserID,
		"vehicle_number", number,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update vehicle", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", vehicle.UserID).InfoContext(ctx, "vehicle updated")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}
	update := params.Update
	var newOwner string
	if update.UserID != nil {
		newOwner = strings.TrimSpace(*update.UserID)
		if newOwner == "" {
			err = fieldError("user_id", "user id must not be empty")
			return
		}
	}

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		current, txErr := tx.GetVehicle(ctx, number)
		if txErr != nil {
			return txErr
		}
		if txErr = authorizeUser(params.Principal, current.UserID); txErr != nil {
			return txErr
		}
		if newOwner != "" && newOwner != current.UserID {
			if !params.Principal.IsAdmin {
				return fmt.Errorf("%w: only administrators can reassign a vehicle", ErrUnauthorized)
			}
			if txErr = requireOwner(ctx, tx, newOwner); txErr != nil {
				return txErr
			}
			current.UserID = newOwner
		}
		setTrimmed(&current.Brand, update.Brand)
		setTrimmed(&current.Model, update.Model)
		setTrimmed(&current.Color, update.Color)
		setTrimmed(&current.FuelType, update.FuelType)
		if txErr = tx.UpdateVehicle(ctx, current); txErr != nil {
			return txErr
		}
		vehicle, txErr = tx.GetVehicle(ctx, number)
		return txErr
	})
	if err != nil {
		err = mapStoreError(err)
		vehicle = Vehicle{}
	}
	return
}

// DeleteVehicle removes a vehicle and its reservation history. A vehicle that
// is currently parked cannot be removed.
func (s *VehicleService) DeleteVehicle(ctx context.Context, principal Principal, number string) (err error) {
	if s == nil {
		return fmt.Errorf("VehicleService is nil")
	}

	number = NormalizeVehicleNumber(number)
	logger := s.loggerWith(ctx, "DeleteVehicle",
		"principal_id", principal.UserID,
		"vehicle_number", number,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete vehicle", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "vehicle deleted")
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	err = s.store.WithinTx(ctx, func(tx ParkingTx) error {
		if _, txErr := tx.GetVehicle(ctx, number); txErr != nil {
			return txErr
		}
		active, txErr := tx.FindActiveReservation(ctx, number)
		switch {
		case txErr == nil:
			return fmt.Errorf("%w: vehicle %s is parked under reservation %d", ErrConflict, number, active.ID)
		case !isNotFound(txErr):
			return txErr
		}
		return tx.DeleteVehicle(ctx, number)
	})
	return mapStoreError(err)
}

// requireOwner reports a field error when the owning user does not exist.
func requireOwner(ctx context.Context, tx ParkingTx, userID string) error {
	if _, err := tx.GetUser(ctx, userID); err != nil {
		if isNotFound(err) {
			return fieldError("user_id", "user does not exist")
		}
		return err
	}
	return nil
}

func setTrimmed(dst *string, value *string) {
	if value == nil {
		return
	}
	if trimmed := strings.TrimSpace(*value); trimmed != "" {
		*dst = trimmed
	}
}

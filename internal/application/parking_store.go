package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/parking-manager/internal/persistence"
)

// ParkingStore reads lots, spots and reservations and runs units of work.
type ParkingStore interface {
	GetLot(ctx context.Context, id int64) (ParkingLot, error)
	ListLots(ctx context.Context) ([]ParkingLot, error)
	ListSpots(ctx context.Context, lotID int64) ([]ParkingSpot, error)
	GetSpot(ctx context.Context, id int64) (ParkingSpot, error)
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	GetVehicle(ctx context.Context, number string) (Vehicle, error)
	LotAvailability(ctx context.Context, lotID int64) (LotAvailability, error)
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx ParkingTx) error) error
}

// ParkingTx is the unit of work used by lot and reservation mutations.
// Conditional writes report whether a row changed.
type ParkingTx interface {
	CreateLot(ctx context.Context, lot ParkingLot) (int64, error)
	GetLot(ctx context.Context, id int64) (ParkingLot, error)
	UpdateLot(ctx context.Context, lot ParkingLot) error
	DeleteLot(ctx context.Context, id int64) error
	AdjustLotCapacity(ctx context.Context, lotID int64, delta int, at time.Time) error
	AddLotRevenue(ctx context.Context, lotID int64, amount decimal.Decimal, at time.Time) error
	CountOccupiedSpots(ctx context.Context, lotID int64) (int, error)

	CreateSpot(ctx context.Context, spot ParkingSpot) (int64, error)
	GetSpot(ctx context.Context, id int64) (ParkingSpot, error)
	UpdateSpot(ctx context.Context, spot ParkingSpot) error
	DeleteSpot(ctx context.Context, id int64) error
	FindAvailableSpot(ctx context.Context, lotID int64, exclude []int64) (ParkingSpot, error)
	ClaimSpot(ctx context.Context, spotID int64, at time.Time) (bool, error)
	ReleaseSpot(ctx context.Context, spotID int64, revenue decimal.Decimal, at time.Time) (bool, error)

	GetUser(ctx context.Context, id string) (User, error)
	GetVehicle(ctx context.Context, number string) (Vehicle, error)
	CreateVehicle(ctx context.Context, vehicle Vehicle) error
	UpdateVehicle(ctx context.Context, vehicle Vehicle) error
	DeleteVehicle(ctx context.Context, number string) error

	FindActiveReservation(ctx context.Context, vehicleNumber string) (Reservation, error)
	CreateReservation(ctx context.Context, reservation Reservation) (int64, error)
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	CompleteReservation(ctx context.Context, id int64, leavingAt time.Time) (bool, error)
	CreatePayment(ctx context.Context, payment Payment) (int64, error)
}

// AvailabilityPublisher receives lot occupancy after committed changes.
type AvailabilityPublisher interface {
	PublishAvailability(ctx context.Context, availability LotAvailability)
}

// mapStoreError translates repository errors into application errors. Storage
// failures that are not a known condition are wrapped in ErrPersistence.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation), errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrConflict
	}
	return persistenceFailure(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound)
}

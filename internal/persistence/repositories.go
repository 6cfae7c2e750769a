package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountAdmins(ctx context.Context) (int, error)
	// DeleteUser removes the user and everything it owns, freeing spots held by
	// its open reservations.
	DeleteUser(ctx context.Context, id string) error
	// ListExpiredDeletions returns inactive users whose deletion deadline is at or before reference.
	ListExpiredDeletions(ctx context.Context, reference time.Time) ([]User, error)
	// PurgeExpiredUser deletes the user only if it is still inactive with a
	// deadline at or before reference. It reports whether a row was removed.
	PurgeExpiredUser(ctx context.Context, id string, reference time.Time) (bool, error)
}

// ProfileRepository stores optional profile details.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	UpsertProfile(ctx context.Context, profile Profile) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// ParkingReader exposes non-transactional reads of lots, spots and reservations.
type ParkingReader interface {
	GetLot(ctx context.Context, id int64) (ParkingLot, error)
	ListLots(ctx context.Context) ([]ParkingLot, error)
	ListSpots(ctx context.Context, lotID int64) ([]ParkingSpot, error)
	GetSpot(ctx context.Context, id int64) (ParkingSpot, error)
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	GetVehicle(ctx context.Context, number string) (Vehicle, error)
	LotAvailability(ctx context.Context, lotID int64) (LotAvailability, error)
}

// ParkingTx is the set of writes and consistent reads available inside one
// transaction. Conditional operations report whether a row changed.
type ParkingTx interface {
	CreateLot(ctx context.Context, lot ParkingLot) (int64, error)
	GetLot(ctx context.Context, id int64) (ParkingLot, error)
	UpdateLot(ctx context.Context, lot ParkingLot) error
	DeleteLot(ctx context.Context, id int64) error
	AdjustLotCapacity(ctx context.Context, lotID int64, delta int, at time.Time) error
	AddLotRevenue(ctx context.Context, lotID int64, cents int64, at time.Time) error
	CountOccupiedSpots(ctx context.Context, lotID int64) (int, error)

	CreateSpot(ctx context.Context, spot ParkingSpot) (int64, error)
	GetSpot(ctx context.Context, id int64) (ParkingSpot, error)
	UpdateSpot(ctx context.Context, spot ParkingSpot) error
	DeleteSpot(ctx context.Context, id int64) error
	FindAvailableSpot(ctx context.Context, lotID int64, exclude []int64) (ParkingSpot, error)
	ClaimSpot(ctx context.Context, spotID int64, at time.Time) (bool, error)
	ReleaseSpot(ctx context.Context, spotID int64, revenueCents int64, at time.Time) (bool, error)

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

// ParkingStore combines reads with a transactional unit of work. WithinTx
// commits when fn returns nil and rolls back otherwise.
type ParkingStore interface {
	ParkingReader
	WithinTx(ctx context.Context, fn func(tx ParkingTx) error) error
}

// ReportRepository serves read-only search and aggregate queries.
type ReportRepository interface {
	SearchLots(ctx context.Context, query string) ([]ParkingLot, error)
	SearchUsers(ctx context.Context, query string) ([]User, error)
	SearchVehicles(ctx context.Context, filter VehicleFilter) ([]Vehicle, error)
	ReservationHistory(ctx context.Context, userID string) ([]ReservationHistoryEntry, error)
	LotSummaries(ctx context.Context) ([]LotSummary, error)
	UserSpend(ctx context.Context, userID string) (UserSpend, error)
}

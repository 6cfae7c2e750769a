package persistence

import "time"

// Stored codes for enumerated columns. The adapter package maps them to the
// application's typed constants.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"

	SpotAvailable = "AVAILABLE"
	SpotOccupied  = "OCCUPIED"

	ReservationActive    = "ACTIVE"
	ReservationCompleted = "COMPLETED"

	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
)

// User is an account row.
type User struct {
	ID                string
	FullName          string
	Email             string
	PasswordHash      string
	PhoneNumber       string
	Address           string
	PinCode           string
	Role              string
	IsActive          bool
	ScheduledDeleteAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile holds optional user details.
type Profile struct {
	UserID    string
	Bio       string
	AvatarURL string
	UpdatedAt time.Time
}

// ParkingLot is a lot row. Money is stored in cents.
type ParkingLot struct {
	ID                   int64
	Name                 string
	PrimeLocationName    string
	Address              string
	PinCode              string
	City                 string
	State                string
	District             string
	FloorLevel           int
	PricePerHourCents    int64
	MaximumNumberOfSpots int
	RevenueCents         int64
	IsActive             bool
	OpenTime             *string // HH:MM
	CloseTime            *string // HH:MM
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ParkingSpot is a spot row belonging to a lot.
type ParkingSpot struct {
	ID           int64
	LotID        int64
	SpotNumber   string
	Status       string
	IsCovered    bool
	RevenueCents int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Vehicle is keyed by its normalised registration number.
type Vehicle struct {
	VehicleNumber string
	UserID        string
	Brand         string
	Model         string
	Color         string
	FuelType      string
	CreatedAt     time.Time
}

// Reservation is a parking session row. SpotID becomes nil when the spot is deleted.
type Reservation struct {
	ID               int64
	SpotID           *int64
	UserID           string
	VehicleNumber    string
	ParkingAt        time.Time
	LeavingAt        *time.Time
	CostPerHourCents int64
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Payment settles exactly one reservation.
type Payment struct {
	ID            int64
	ReservationID int64
	AmountCents   int64
	Method        string
	Status        string
	PaidAt        time.Time
}

// Session represents an authentication session persisted for a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// LotAvailability counts the spots of one lot by state.
type LotAvailability struct {
	LotID     int64
	Capacity  int
	Occupied  int
	Available int
}

// LotSummary is one row of the revenue report.
type LotSummary struct {
	LotID        int64
	Name         string
	RevenueCents int64
	LotAvailability
}

// UserSpend aggregates the payments of one user.
type UserSpend struct {
	UserID             string
	TotalPaidCents     int64
	PaymentCount       int
	ActiveReservations int
}

// ReservationHistoryEntry joins a reservation with its spot, lot and payment.
// The spot and lot fields are nil when the spot no longer exists.
type ReservationHistoryEntry struct {
	Reservation Reservation
	SpotNumber  *string
	LotID       *int64
	LotName     *string
	Payment     *Payment
}

// VehicleFilter narrows vehicle searches. Empty fields match everything.
type VehicleFilter struct {
	Number  string
	OwnerID string
}

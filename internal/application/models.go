package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// Role distinguishes administrators from regular users.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	}
	return "unknown"
}

// SpotStatus is the occupancy state of a parking spot.
type SpotStatus int

const (
	SpotAvailable SpotStatus = iota + 1
	SpotOccupied
)

func (s SpotStatus) String() string {
	switch s {
	case SpotAvailable:
		return "available"
	case SpotOccupied:
		return "occupied"
	}
	return "unknown"
}

// ReservationStatus tracks whether a vehicle is still parked.
type ReservationStatus int

const (
	ReservationActive ReservationStatus = iota + 1
	ReservationCompleted
)

func (s ReservationStatus) String() string {
	switch s {
	case ReservationActive:
		return "active"
	case ReservationCompleted:
		return "completed"
	}
	return "unknown"
}

// PaymentStatus is the settlement state of a payment.
type PaymentStatus int

const (
	PaymentPending PaymentStatus = iota + 1
	PaymentPaid
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentPending:
		return "pending"
	case PaymentPaid:
		return "paid"
	}
	return "unknown"
}

// PaymentMethod is how a reservation was paid.
type PaymentMethod int

const (
	PaymentCash PaymentMethod = iota + 1
	PaymentCard
	PaymentUPI
	PaymentNetBanking
)

var paymentMethodNames = map[PaymentMethod]string{
	PaymentCash:       "cash",
	PaymentCard:       "card",
	PaymentUPI:        "upi",
	PaymentNetBanking: "net_banking",
}

func (m PaymentMethod) String() string {
	if name, ok := paymentMethodNames[m]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether m is one of the supported methods.
func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethodNames[m]
	return ok
}

// ParsePaymentMethod accepts the lower case names produced by String.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	for method, name := range paymentMethodNames {
		if name == value {
			return method, true
		}
	}
	return 0, false
}

// User is an account exposed by the application services. Password hashes never leave the store adapters
// except through UserCredentials.
type User struct {
	ID                string
	FullName          string
	Email             string
	PhoneNumber       string
	Address           string
	PinCode           string
	Role              Role
	IsActive          bool
	ScheduledDeleteAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin reports whether the account has the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserCredentials pairs an account with its stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Profile holds optional presentation details of a user.
type Profile struct {
	UserID    string
	Bio       string
	AvatarURL string
	UpdatedAt time.Time
}

// ParkingLot is a parking facility with a fixed set of spots.
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
	PricePerHour         decimal.Decimal
	MaximumNumberOfSpots int
	Revenue              decimal.Decimal
	IsActive             bool
	Hours                OperatingHours
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ParkingSpot is one bay of a lot.
type ParkingSpot struct {
	ID         int64
	LotID      int64
	SpotNumber string
	Status     SpotStatus
	IsCovered  bool
	Revenue    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Vehicle is identified by its normalised registration number.
type Vehicle struct {
	VehicleNumber string
	UserID        string
	Brand         string
	Model         string
	Color         string
	FuelType      string
	CreatedAt     time.Time
}

// Reservation is one parking session. SpotID is nil once the spot was deleted.
type Reservation struct {
	ID            int64
	SpotID        *int64
	UserID        string
	VehicleNumber string
	ParkingAt     time.Time
	LeavingAt     *time.Time
	CostPerHour   decimal.Decimal
	Status        ReservationStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Payment settles one reservation.
type Payment struct {
	ID            int64
	ReservationID int64
	Amount        decimal.Decimal
	Method        PaymentMethod
	Status        PaymentStatus
	PaidAt        time.Time
}

// Session represents an authenticated session issued to a user.
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

// LotAvailability counts the spots of a lot by state.
type LotAvailability struct {
	LotID     int64
	Capacity  int
	Occupied  int
	Available int
}

// ReleaseQuote is the price of ending a reservation now. It is never persisted.
type ReleaseQuote struct {
	Token         string
	ReservationID int64
	ParkingAt     time.Time
	LeavingAt     time.Time
	DurationHours decimal.Decimal
	CostPerHour   decimal.Decimal
	EstimatedCost decimal.Decimal
	ExpiresAt     time.Time
}

// Settlement is the outcome of a successful payment.
type Settlement struct {
	Reservation Reservation
	Payment     Payment
}

// LotSummary is one row of the revenue report.
type LotSummary struct {
	LotID   int64
	Name    string
	Revenue decimal.Decimal
	LotAvailability
}

// UserSpend aggregates what a user paid.
type UserSpend struct {
	UserID             string
	TotalPaid          decimal.Decimal
	PaymentCount       int
	ActiveReservations int
}

// DeletedSpotLabel is shown in histories for reservations whose spot no longer exists.
const DeletedSpotLabel = "deleted spot"

// ReservationHistoryEntry is a reservation joined with its spot, lot and payment.
type ReservationHistoryEntry struct {
	Reservation Reservation
	SpotNumber  string
	LotID       *int64
	LotName     string
	Payment     *Payment
}

// VehicleFilter narrows vehicle searches.
type VehicleFilter struct {
	Number  string
	OwnerID string
}

// LotInput captures the caller provided fields of a new lot.
type LotInput struct {
	Name                 string
	PrimeLocationName    string
	Address              string
	PinCode              string
	City                 string
	State                string
	District             string
	FloorLevel           int
	PricePerHour         decimal.Decimal
	MaximumNumberOfSpots int
	OpenTime             *string
	CloseTime            *string
}

// CreateLotParams wraps the data required to create a lot.
type CreateLotParams struct {
	Principal Principal
	Input     LotInput
}

// LotUpdate lists the only lot fields that may change after creation. Nil fields are left untouched.
type LotUpdate struct {
	PricePerHour *decimal.Decimal
	OpenTime     *string
	CloseTime    *string
	ClearHours   bool
	IsActive     *bool
}

// UpdateLotParams wraps the data required to update a lot.
type UpdateLotParams struct {
	Principal Principal
	LotID     int64
	Update    LotUpdate
}

// SpotUpdate lists the spot fields an administrator may change. Status and
// lot membership follow reservations and are not editable.
type SpotUpdate struct {
	SpotNumber *string
	IsCovered  *bool
}

// UpdateSpotParams wraps the data required to update a spot.
type UpdateSpotParams struct {
	Principal Principal
	SpotID    int64
	Update    SpotUpdate
}

// VehicleInput describes the vehicle being parked.
type VehicleInput struct {
	VehicleNumber string
	Brand         string
	Model         string
	Color         string
	FuelType      string
}

// RegisterVehicleParams wraps the data required to register a vehicle.
// UserID defaults to the principal.
type RegisterVehicleParams struct {
	Principal Principal
	UserID    string
	Vehicle   VehicleInput
}

// VehicleUpdate lists the changeable vehicle attributes. Nil fields are left
// untouched; UserID may only be changed by an administrator.
type VehicleUpdate struct {
	UserID   *string
	Brand    *string
	Model    *string
	Color    *string
	FuelType *string
}

// UpdateVehicleParams wraps the data required to update a vehicle.
type UpdateVehicleParams struct {
	Principal     Principal
	VehicleNumber string
	Update        VehicleUpdate
}

// ReserveParams wraps the data required to reserve a spot.
type ReserveParams struct {
	Principal Principal
	LotID     int64
	UserID    string
	Vehicle   VehicleInput
}

// SettlePaymentParams wraps the data required to end a reservation and pay for it.
// When QuoteToken is set the quoted cost is charged and Amount is ignored;
// otherwise Amount must be set.
type SettlePaymentParams struct {
	Principal     Principal
	ReservationID int64
	Amount        decimal.NullDecimal
	Method        PaymentMethod
	QuoteToken    string
}

// RegisterInput captures the sign-up form.
type RegisterInput struct {
	FullName    string
	Email       string
	Password    string
	PhoneNumber string
	Address     string
	PinCode     string
}

// RegisterParams wraps the data required to register a user.
type RegisterParams struct {
	Input RegisterInput
}

// EnsureAdminParams wraps the bootstrap administrator account.
type EnsureAdminParams struct {
	FullName string
	Email    string
	Password string
}

// UserUpdate captures the editable account attributes. An empty Password keeps the current one.
type UserUpdate struct {
	FullName    string
	PhoneNumber string
	Address     string
	PinCode     string
	Password    string
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserUpdate
}

// UpdateProfileParams wraps the data required to update a profile.
type UpdateProfileParams struct {
	Principal Principal
	UserID    string
	Bio       string
	AvatarURL string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
	// Recovered is set when the login cancelled a pending account deletion.
	Recovered bool
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}

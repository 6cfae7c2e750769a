package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/persistence"
)

var (
	userCounter    uint64
	lotCounter     uint64
	vehicleCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	FullName     string
	Email        string
	Password     string
	PasswordHash string
	PhoneNumber  string
	Address      string
	PinCode      string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           fmt.Sprintf("@driver%03d", idx),
		FullName:     fmt.Sprintf("Driver %03d", idx),
		Email:        fmt.Sprintf("driver%03d@example.com", idx),
		Password:     "secret-password",
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		PhoneNumber:  fmt.Sprintf("98765%05d", idx),
		Address:      "12 Market Road",
		PinCode:      "560001",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserAdmin sets the admin role on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

func (f UserFixture) role() application.Role {
	if f.IsAdmin {
		return application.RoleAdmin
	}
	return application.RoleUser
}

// Application returns the fixture as an active application.User.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		FullName:    f.FullName,
		Email:       f.Email,
		PhoneNumber: f.PhoneNumber,
		Address:     f.Address,
		PinCode:     f.PinCode,
		Role:        f.role(),
		IsActive:    true,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{User: f.Application(), PasswordHash: f.PasswordHash}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	role := persistence.RoleUser
	if f.IsAdmin {
		role = persistence.RoleAdmin
	}
	return persistence.User{
		ID:           f.ID,
		FullName:     f.FullName,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		PhoneNumber:  f.PhoneNumber,
		Address:      f.Address,
		PinCode:      f.PinCode,
		Role:         role,
		IsActive:     true,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as a registration form.
func (f UserFixture) Input() application.RegisterInput {
	return application.RegisterInput{
		FullName:    f.FullName,
		Email:       f.Email,
		Password:    f.Password,
		PhoneNumber: f.PhoneNumber,
		Address:     f.Address,
		PinCode:     f.PinCode,
	}
}

// ----------------------------- Lot fixtures ------------------------------

// LotFixture represents a deterministic parking lot definition.
type LotFixture struct {
	Name         string
	City         string
	PricePerHour decimal.Decimal
	Spots        int
	OpenTime     *string
	CloseTime    *string
}

// LotOption configures the generated lot fixture.
type LotOption func(*LotFixture)

// NewLotFixture returns a deterministic, always open lot with optional overrides.
func NewLotFixture(opts ...LotOption) LotFixture {
	idx := atomic.AddUint64(&lotCounter, 1)
	fixture := LotFixture{
		Name:         fmt.Sprintf("Lot %03d", idx),
		City:         "Bengaluru",
		PricePerHour: decimal.NewFromInt(10),
		Spots:        3,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithLotSpots overrides the number of spots.
func WithLotSpots(spots int) LotOption {
	return func(f *LotFixture) {
		f.Spots = spots
	}
}

// WithLotPrice overrides the hourly price.
func WithLotPrice(price string) LotOption {
	return func(f *LotFixture) {
		f.PricePerHour = decimal.RequireFromString(price)
	}
}

// WithLotHours sets the opening hours as HH:MM values.
func WithLotHours(open, close string) LotOption {
	return func(f *LotFixture) {
		f.OpenTime = copyStringPtr(&open)
		f.CloseTime = copyStringPtr(&close)
	}
}

// Input returns the fixture as an application.LotInput.
func (f LotFixture) Input() application.LotInput {
	return application.LotInput{
		Name:                 f.Name,
		PrimeLocationName:    f.Name + " Plaza",
		Address:              "1 Station Road",
		PinCode:              "560002",
		City:                 f.City,
		State:                "Karnataka",
		District:             "Bengaluru Urban",
		FloorLevel:           1,
		PricePerHour:         f.PricePerHour,
		MaximumNumberOfSpots: f.Spots,
		OpenTime:             copyStringPtr(f.OpenTime),
		CloseTime:            copyStringPtr(f.CloseTime),
	}
}

// --------------------------- Vehicle fixtures ----------------------------

// NewVehicleInput returns a vehicle with a unique registration number.
func NewVehicleInput() application.VehicleInput {
	idx := atomic.AddUint64(&vehicleCounter, 1)
	return application.VehicleInput{
		VehicleNumber: fmt.Sprintf("KA01AB%04d", idx),
		Brand:         "Maruti",
		Model:         "Swift",
		Color:         "White",
		FuelType:      "Petrol",
	}
}

func copyStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

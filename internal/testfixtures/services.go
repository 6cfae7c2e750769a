package testfixtures

import (
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/example/parking-manager/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// a shared manual clock and predictable tokens.
type ServiceFactory struct {
	Clock  *Clock
	Tokens *Tokens
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:  NewClock(time.Time{}),
		Tokens: NewTokens(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.Tokens == nil {
		factory.Tokens = NewTokens()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithTokens overrides the session and quote token sequence used by the factory.
func WithTokens(tokens *Tokens) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Tokens = tokens
	}
}

func (f *ServiceFactory) now(override func() time.Time) func() time.Time {
	if override != nil {
		return override
	}
	return f.Clock.NowFunc()
}

func (f *ServiceFactory) tokens(override func() string) func() string {
	if override != nil {
		return override
	}
	return f.Tokens.Func()
}

// LotServiceDeps captures dependencies for constructing a lot service.
type LotServiceDeps struct {
	Store     application.ParkingStore
	Publisher application.AvailabilityPublisher
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewLotService builds a lot service using the supplied dependencies.
func (f *ServiceFactory) NewLotService(deps LotServiceDeps) *application.LotService {
	return application.NewLotServiceWithLogger(deps.Store, deps.Publisher, f.now(deps.Now), deps.Logger)
}

// ReservationServiceDeps captures dependencies for constructing a reservation service.
type ReservationServiceDeps struct {
	Store          application.ParkingStore
	Publisher      application.AvailabilityPublisher
	TokenGenerator func() string
	Now            func() time.Time
	Config         application.ReservationConfig
	Logger         *slog.Logger
}

// NewReservationService builds a reservation service. Opening hours are
// evaluated in UTC unless the config names a location.
func (f *ServiceFactory) NewReservationService(deps ReservationServiceDeps) *application.ReservationService {
	cfg := deps.Config
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return application.NewReservationServiceWithLogger(
		deps.Store,
		deps.Publisher,
		f.tokens(deps.TokenGenerator),
		f.now(deps.Now),
		cfg,
		deps.Logger,
	)
}

// AccountServiceDeps captures dependencies for constructing an account service.
type AccountServiceDeps struct {
	Users    application.UserRepository
	Profiles application.ProfileRepository
	Sessions application.SessionRevoker
	Now      func() time.Time
	Config   application.AccountConfig
	Logger   *slog.Logger
}

// NewAccountService builds an account service. Passwords are stored as
// "hash:<password>" unless the config supplies a hasher, and generated ids
// end in 101, 102 and so on.
func (f *ServiceFactory) NewAccountService(deps AccountServiceDeps) *application.AccountService {
	cfg := deps.Config
	if cfg.HashPassword == nil {
		cfg.HashPassword = PlainHasher
	}
	if cfg.IDSuffix == nil {
		var seq atomic.Uint64
		cfg.IDSuffix = func() string { return strconv.FormatUint(100+seq.Add(1), 10) }
	}
	return application.NewAccountServiceWithLogger(deps.Users, deps.Profiles, deps.Sessions, f.now(deps.Now), cfg, deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.SessionRepository
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	verify := deps.PasswordVerify
	if verify == nil {
		verify = PlainVerifier
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		verify,
		f.tokens(deps.TokenGenerator),
		f.now(deps.Now),
		deps.SessionTTL,
		deps.Logger,
	)
}

// PlainHasher is a reversible stand-in for argon2id so tests stay fast.
func PlainHasher(password string) (string, error) {
	return "hash:" + password, nil
}

// PlainVerifier accepts passwords produced by PlainHasher.
func PlainVerifier(hash, password string) error {
	if hash != "hash:"+password {
		return application.ErrInvalidCredentials
	}
	return nil
}

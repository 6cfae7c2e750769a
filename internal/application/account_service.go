package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/parking-manager/internal/persistence"
)

// DefaultDeletionGrace is how long a soft-deleted account can still be recovered.
const DefaultDeletionGrace = 15 * 24 * time.Hour

const maxUserIDAttempts = 5

// UserRepository captures the account persistence operations.
type UserRepository interface {
	CreateUser(ctx context.Context, credentials UserCredentials) error
	// UpdateUser stores the mutable attributes. An empty passwordHash keeps the stored one.
	UpdateUser(ctx context.Context, user User, passwordHash string) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountAdmins(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id string) error
	ListExpiredDeletions(ctx context.Context, reference time.Time) ([]User, error)
	PurgeExpiredUser(ctx context.Context, id string, reference time.Time) (bool, error)
}

// ProfileRepository stores optional profile details.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	UpsertProfile(ctx context.Context, profile Profile) error
}

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error
}

// AccountConfig tunes the account lifecycle.
type AccountConfig struct {
	DeletionGrace time.Duration
	HashPassword  PasswordHasher
	// IDSuffix returns the digits appended to generated user ids.
	IDSuffix func() string
}

// AccountService registers users and manages their lifecycle up to the final purge.
type AccountService struct {
	users        UserRepository
	profiles     ProfileRepository
	sessions     SessionRevoker
	hashPassword PasswordHasher
	idSuffix     func() string
	grace        time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewAccountService constructs an account service with the provided dependencies.
func NewAccountService(users UserRepository, profiles ProfileRepository, sessions SessionRevoker, now func() time.Time, cfg AccountConfig) *AccountService {
	return NewAccountServiceWithLogger(users, profiles, sessions, now, cfg, nil)
}

// NewAccountServiceWithLogger constructs an account service with a specified logger.
func NewAccountServiceWithLogger(users UserRepository, profiles ProfileRepository, sessions SessionRevoker, now func() time.Time, cfg AccountConfig, logger *slog.Logger) *AccountService {
	if now == nil {
		now = time.Now
	}
	if cfg.DeletionGrace <= 0 {
		cfg.DeletionGrace = DefaultDeletionGrace
	}
	if cfg.HashPassword == nil {
		cfg.HashPassword = NewArgon2idHasher(DefaultArgon2idParams)
	}
	if cfg.IDSuffix == nil {
		cfg.IDSuffix = func() string { return fmt.Sprintf("%d", 100+rand.IntN(900)) }
	}
	return &AccountService{
		users:        users,
		profiles:     profiles,
		sessions:     sessions,
		hashPassword: cfg.HashPassword,
		idSuffix:     cfg.IDSuffix,
		grace:        cfg.DeletionGrace,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *AccountService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AccountService", operation, attrs...)
}

// Register creates a regular user account from the public sign-up form.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	input := normalizeRegisterInput(params.Input)
	logger := s.loggerWith(ctx, "Register", "email", input.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	if vErr := validateRegisterInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	user, err = s.createAccount(ctx, input, RoleUser)
	return
}

// EnsureAdmin creates the bootstrap administrator when no admin exists yet.
// It reports whether an account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, params EnsureAdminParams) (created bool, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	logger := s.loggerWith(ctx, "EnsureAdmin", "email", params.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to ensure admin", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("created", created).InfoContext(ctx, "admin ensured")
	}()

	var admins int
	if admins, err = s.users.CountAdmins(ctx); err != nil {
		err = mapStoreError(err)
		return
	}
	if admins > 0 {
		return false, nil
	}

	name := strings.TrimSpace(params.FullName)
	if name == "" {
		name = "Administrator"
	}
	input := RegisterInput{
		FullName: name,
		Email:    strings.ToLower(strings.TrimSpace(params.Email)),
		Password: params.Password,
	}
	vErr := &ValidationError{}
	if _, parseErr := mail.ParseAddress(input.Email); input.Email == "" || parseErr != nil {
		vErr.add("email", "email is invalid")
	}
	if len(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, err = s.createAccount(ctx, input, RoleAdmin); err != nil {
		return
	}
	return true, nil
}

func (s *AccountService) createAccount(ctx context.Context, input RegisterInput, role Role) (User, error) {
	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := User{
		FullName:    input.FullName,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		Address:     input.Address,
		PinCode:     input.PinCode,
		Role:        role,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	localPart, _, _ := strings.Cut(input.Email, "@")

	for attempt := 0; attempt < maxUserIDAttempts; attempt++ {
		user.ID = "@" + localPart + s.idSuffix()
		err = s.users.CreateUser(ctx, UserCredentials{User: user, PasswordHash: hash})
		if err == nil {
			return s.reload(ctx, user)
		}

		var dup *persistence.DuplicateError
		if !errors.As(err, &dup) {
			return User{}, mapStoreError(err)
		}
		switch dup.Column {
		case "id":
			continue
		case "email":
			return User{}, fieldError("email", "email is already registered")
		case "phone_number":
			return User{}, fieldError("phone_number", "phone number is already registered")
		}
		return User{}, ErrAlreadyExists
	}
	return User{}, fmt.Errorf("%w: could not allocate a user id", ErrAlreadyExists)
}

func (s *AccountService) reload(ctx context.Context, user User) (User, error) {
	persisted, err := s.users.GetUser(ctx, user.ID)
	if err != nil {
		if isNotFound(err) {
			return user, nil
		}
		return User{}, mapStoreError(err)
	}
	return persisted, nil
}

// GetUser returns an account to itself or an administrator.
func (s *AccountService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("AccountService is nil")
	}
	if err := authorizeUser(principal, userID); err != nil {
		return User{}, err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapStoreError(err)
	}
	return user, nil
}

// UpdateUser changes contact details and optionally the password.
func (s *AccountService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	if err = authorizeUser(params.Principal, params.UserID); err != nil {
		return
	}

	input := params.Input
	input.FullName = strings.TrimSpace(input.FullName)
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	input.Address = strings.TrimSpace(input.Address)
	input.PinCode = strings.TrimSpace(input.PinCode)

	vErr := &ValidationError{}
	validateName(vErr, input.FullName)
	validateContact(vErr, input.PhoneNumber, input.Address, input.PinCode)
	if input.Password != "" && len(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if user, err = s.users.GetUser(ctx, params.UserID); err != nil {
		err = mapStoreError(err)
		return
	}

	var hash string
	if input.Password != "" {
		if hash, err = s.hashPassword(input.Password); err != nil {
			err = fmt.Errorf("hash password: %w", err)
			return
		}
	}

	user.FullName = input.FullName
	user.PhoneNumber = input.PhoneNumber
	user.Address = input.Address
	user.PinCode = input.PinCode
	user.UpdatedAt = s.now()

	if err = s.users.UpdateUser(ctx, user, hash); err != nil {
		var dup *persistence.DuplicateError
		if errors.As(err, &dup) && dup.Column == "phone_number" {
			err = fieldError("phone_number", "phone number is already registered")
			return
		}
		err = mapStoreError(err)
		return
	}
	user, err = s.reload(ctx, user)
	return
}

// ListUsers returns all accounts ordered by e-mail for administrators.
func (s *AccountService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("AccountService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}

	out := make([]User, len(users))
	copy(out, users)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email == out[j].Email {
			return out[i].ID < out[j].ID
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// DeleteUser purges an account immediately. Administrators only.
func (s *AccountService) DeleteUser(ctx context.Context, principal Principal, userID string) (err error) {
	if s == nil {
		return fmt.Errorf("AccountService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteUser",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user deleted")
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if principal.UserID == userID {
		return fmt.Errorf("%w: administrators cannot delete themselves", ErrConflict)
	}
	return mapStoreError(s.users.DeleteUser(ctx, userID))
}

// GetProfile returns the profile of a user. Users without one get an empty profile.
func (s *AccountService) GetProfile(ctx context.Context, principal Principal, userID string) (Profile, error) {
	if s == nil {
		return Profile{}, fmt.Errorf("AccountService is nil")
	}
	if err := authorizeUser(principal, userID); err != nil {
		return Profile{}, err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return Profile{}, mapStoreError(err)
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return Profile{UserID: userID}, nil
		}
		return Profile{}, mapStoreError(err)
	}
	return profile, nil
}

// UpdateProfile replaces the profile details of a user.
func (s *AccountService) UpdateProfile(ctx context.Context, params UpdateProfileParams) (profile Profile, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProfile",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update profile", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	if err = authorizeUser(params.Principal, params.UserID); err != nil {
		return
	}

	profile = Profile{
		UserID:    params.UserID,
		Bio:       strings.TrimSpace(params.Bio),
		AvatarURL: strings.TrimSpace(params.AvatarURL),
		UpdatedAt: s.now(),
	}
	vErr := &ValidationError{}
	if utf8.RuneCountInString(profile.Bio) > 500 {
		vErr.add("bio", "bio must be at most 500 characters")
	}
	if len(profile.AvatarURL) > 2048 {
		vErr.add("avatar_url", "avatar url is too long")
	}
	if vErr.HasErrors() {
		err = vErr
		profile = Profile{}
		return
	}

	if _, err = s.users.GetUser(ctx, params.UserID); err != nil {
		err = mapStoreError(err)
		profile = Profile{}
		return
	}
	if err = s.profiles.UpsertProfile(ctx, profile); err != nil {
		err = mapStoreError(err)
		profile = Profile{}
	}
	return
}

// ScheduleDeletion deactivates an account and sets its purge deadline.
// Sessions are revoked before the account is deactivated, so a failure in
// between leaves an active account that is merely logged out.
func (s *AccountService) ScheduleDeletion(ctx context.Context, principal Principal, userID string) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ScheduleDeletion",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to schedule deletion", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("scheduled_delete_at", user.ScheduledDeleteAt).InfoContext(ctx, "account deletion scheduled")
	}()

	if err = authorizeUser(principal, userID); err != nil {
		return
	}
	if user, err = s.users.GetUser(ctx, userID); err != nil {
		err = mapStoreError(err)
		return
	}
	if user.ScheduledDeleteAt != nil {
		err = fmt.Errorf("%w: deletion already scheduled", ErrConflict)
		return
	}

	now := s.now()
	deadline := now.Add(s.grace)
	user.IsActive = false
	user.ScheduledDeleteAt = &deadline
	user.UpdatedAt = now
	if s.sessions != nil {
		if err = s.sessions.RevokeUserSessions(ctx, userID, now); err != nil {
			err = mapStoreError(err)
			user = User{}
			return
		}
	}
	if err = s.users.UpdateUser(ctx, user, ""); err != nil {
		err = mapStoreError(err)
		user = User{}
		return
	}
	user, err = s.reload(ctx, user)
	return
}

// CancelDeletion reactivates an account whose deletion deadline has not passed.
func (s *AccountService) CancelDeletion(ctx context.Context, principal Principal, userID string) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CancelDeletion",
		"principal_id", principal.UserID,
		"user_id", userID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel deletion", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "account deletion cancelled")
	}()

	if err = authorizeUser(principal, userID); err != nil {
		return
	}
	if user, err = s.users.GetUser(ctx, userID); err != nil {
		err = mapStoreError(err)
		return
	}
	if user.ScheduledDeleteAt == nil {
		err = fmt.Errorf("%w: no deletion scheduled", ErrConflict)
		return
	}

	now := s.now()
	if !now.Before(*user.ScheduledDeleteAt) {
		err = ErrAccountPermanentlyDeleted
		return
	}
	user.IsActive = true
	user.ScheduledDeleteAt = nil
	user.UpdatedAt = now
	if err = s.users.UpdateUser(ctx, user, ""); err != nil {
		err = mapStoreError(err)
		return
	}
	user, err = s.reload(ctx, user)
	return
}

// SweepExpiredDeletions purges every account whose deletion deadline has passed.
// Each purge re-checks the deadline, so accounts recovered meanwhile survive.
func (s *AccountService) SweepExpiredDeletions(ctx context.Context) (purged int, err error) {
	if s == nil {
		err = fmt.Errorf("AccountService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SweepExpiredDeletions")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "account sweep failed", "error", err, "error_kind", ErrorKind(err), "purged", purged)
			return
		}
		if purged > 0 {
			logger.With("purged", purged).InfoContext(ctx, "expired accounts purged")
		}
	}()

	reference := s.now()
	var expired []User
	if expired, err = s.users.ListExpiredDeletions(ctx, reference); err != nil {
		err = mapStoreError(err)
		return
	}

	var failures []error
	for _, user := range expired {
		if ctxErr := ctx.Err(); ctxErr != nil {
			failures = append(failures, ctxErr)
			break
		}
		removed, purgeErr := s.users.PurgeExpiredUser(ctx, user.ID, reference)
		if purgeErr != nil {
			failures = append(failures, fmt.Errorf("purge %s: %w", user.ID, mapStoreError(purgeErr)))
			continue
		}
		if removed {
			purged++
			logger.DebugContext(ctx, "account purged", "user_id", user.ID)
		}
	}
	err = errors.Join(failures...)
	return
}

// RunSweeper calls SweepExpiredDeletions every interval until ctx is cancelled.
func (s *AccountService) RunSweeper(ctx context.Context, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_, _ = s.SweepExpiredDeletions(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

const (
	minNameLength     = 3
	maxNameLength     = 50
	minPasswordLength = 6
	minPhoneLength    = 10
	maxPhoneLength    = 15
	minPinLength      = 6
	maxPinLength      = 10
)

func normalizeRegisterInput(input RegisterInput) RegisterInput {
	return RegisterInput{
		FullName:    strings.TrimSpace(input.FullName),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		Password:    input.Password,
		PhoneNumber: strings.TrimSpace(input.PhoneNumber),
		Address:     strings.TrimSpace(input.Address),
		PinCode:     strings.TrimSpace(input.PinCode),
	}
}

func validateRegisterInput(input RegisterInput) *ValidationError {
	vErr := &ValidationError{}

	validateName(vErr, input.FullName)
	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if input.Password == "" {
		vErr.add("password", "password is required")
	} else if len(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	validateContact(vErr, input.PhoneNumber, input.Address, input.PinCode)

	return vErr
}

func validateName(vErr *ValidationError, name string) {
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		vErr.add("full_name", fmt.Sprintf("full name must be between %d and %d characters", minNameLength, maxNameLength))
	}
}

func validateContact(vErr *ValidationError, phone, address, pin string) {
	if n := len(phone); n < minPhoneLength || n > maxPhoneLength {
		vErr.add("phone_number", fmt.Sprintf("phone number must be between %d and %d characters", minPhoneLength, maxPhoneLength))
	}
	if address == "" {
		vErr.add("address", "address is required")
	}
	if n := len(pin); n < minPinLength || n > maxPinLength {
		vErr.add("pin_code", fmt.Sprintf("pin code must be between %d and %d characters", minPinLength, maxPinLength))
	}
}

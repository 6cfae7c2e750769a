package adapter

import (
	"context"
	"time"

	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/persistence"
)

// UserStore exposes persistence.UserRepository and ProfileRepository through
// the account ports of the application layer.
type UserStore struct {
	users    persistence.UserRepository
	profiles persistence.ProfileRepository
}

var (
	_ application.UserRepository    = (*UserStore)(nil)
	_ application.ProfileRepository = (*UserStore)(nil)
	_ application.CredentialStore   = (*UserStore)(nil)
)

// NewUserStore wraps the persistence repositories.
func NewUserStore(users persistence.UserRepository, profiles persistence.ProfileRepository) *UserStore {
	return &UserStore{users: users, profiles: profiles}
}

func (s *UserStore) CreateUser(ctx context.Context, credentials application.UserCredentials) error {
	record, err := userToRecord(credentials.User, credentials.PasswordHash)
	if err != nil {
		return err
	}
	return s.users.CreateUser(ctx, record)
}

func (s *UserStore) UpdateUser(ctx context.Context, user application.User, passwordHash string) error {
	if passwordHash == "" {
		current, err := s.users.GetUser(ctx, user.ID)
		if err != nil {
			return err
		}
		passwordHash = current.PasswordHash
	}
	record, err := userToRecord(user, passwordHash)
	if err != nil {
		return err
	}
	return s.users.UpdateUser(ctx, record)
}

func (s *UserStore) GetUser(ctx context.Context, id string) (application.User, error) {
	record, err := s.users.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return userFromRecord(record)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	record, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, err
	}
	return userFromRecord(record)
}

func (s *UserStore) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	record, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	user, err := userFromRecord(record)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{User: user, PasswordHash: record.PasswordHash}, nil
}

func (s *UserStore) ListUsers(ctx context.Context) ([]application.User, error) {
	records, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return usersFromRecords(records)
}

func (s *UserStore) CountAdmins(ctx context.Context) (int, error) {
	return s.users.CountAdmins(ctx)
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	return s.users.DeleteUser(ctx, id)
}

func (s *UserStore) ListExpiredDeletions(ctx context.Context, reference time.Time) ([]application.User, error) {
	records, err := s.users.ListExpiredDeletions(ctx, reference)
	if err != nil {
		return nil, err
	}
	return usersFromRecords(records)
}

func (s *UserStore) PurgeExpiredUser(ctx context.Context, id string, reference time.Time) (bool, error) {
	return s.users.PurgeExpiredUser(ctx, id, reference)
}

func (s *UserStore) GetProfile(ctx context.Context, userID string) (application.Profile, error) {
	record, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return application.Profile{}, err
	}
	return application.Profile{
		UserID:    record.UserID,
		Bio:       record.Bio,
		AvatarURL: record.AvatarURL,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

func (s *UserStore) UpsertProfile(ctx context.Context, profile application.Profile) error {
	return s.profiles.UpsertProfile(ctx, persistence.Profile{
		UserID:    profile.UserID,
		Bio:       profile.Bio,
		AvatarURL: profile.AvatarURL,
		UpdatedAt: profile.UpdatedAt,
	})
}

func userToRecord(user application.User, passwordHash string) (persistence.User, error) {
	role, err := encode(roleCodes, user.Role, "role")
	if err != nil {
		return persistence.User{}, err
	}
	return persistence.User{
		ID:                user.ID,
		FullName:          user.FullName,
		Email:             user.Email,
		PasswordHash:      passwordHash,
		PhoneNumber:       user.PhoneNumber,
		Address:           user.Address,
		PinCode:           user.PinCode,
		Role:              role,
		IsActive:          user.IsActive,
		ScheduledDeleteAt: user.ScheduledDeleteAt,
		CreatedAt:         user.CreatedAt,
		UpdatedAt:         user.UpdatedAt,
	}, nil
}

func userFromRecord(record persistence.User) (application.User, error) {
	role, err := decode(roleCodes, record.Role, "role")
	if err != nil {
		return application.User{}, err
	}
	return application.User{
		ID:                record.ID,
		FullName:          record.FullName,
		Email:             record.Email,
		PhoneNumber:       record.PhoneNumber,
		Address:           record.Address,
		PinCode:           record.PinCode,
		Role:              role,
		IsActive:          record.IsActive,
		ScheduledDeleteAt: record.ScheduledDeleteAt,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}, nil
}

func usersFromRecords(records []persistence.User) ([]application.User, error) {
	out := make([]application.User, 0, len(records))
	for _, record := range records {
		user, err := userFromRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}

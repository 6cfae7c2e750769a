package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/parking-manager/internal/persistence"
)

const userColumns = `id, full_name, email, password_hash, phone_number, address, pin_code, role, is_active, scheduled_delete_at, created_at, updated_at`

type userRow struct {
	ID                string         `db:"id"`
	FullName          string         `db:"full_name"`
	Email             string         `db:"email"`
	PasswordHash      string         `db:"password_hash"`
	PhoneNumber       string         `db:"phone_number"`
	Address           string         `db:"address"`
	PinCode           string         `db:"pin_code"`
	Role              string         `db:"role"`
	IsActive          bool           `db:"is_active"`
	ScheduledDeleteAt sql.NullString `db:"scheduled_delete_at"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

func (s *Storage) userFromRow(row userRow) (persistence.User, error) {
	user := persistence.User{
		ID:           row.ID,
		FullName:     row.FullName,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		PhoneNumber:  row.PhoneNumber,
		Address:      row.Address,
		PinCode:      row.PinCode,
		Role:         row.Role,
		IsActive:     row.IsActive,
	}
	var err error
	if user.ScheduledDeleteAt, err = s.parseNullableTimestamp(row.ScheduledDeleteAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse scheduled_delete_at: %w", err)
	}
	if user.CreatedAt, err = s.parseTimestamp(row.CreatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = s.parseTimestamp(row.UpdatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return user, nil
}

func (s *Storage) usersFromRows(rows []userRow) ([]persistence.User, error) {
	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := s.userFromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a new user.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		user.FullName,
		normalizeEmail(user.Email),
		user.PasswordHash,
		user.PhoneNumber,
		user.Address,
		user.PinCode,
		user.Role,
		user.IsActive,
		formatNullableTimestamp(user.ScheduledDeleteAt),
		formatTimestamp(user.CreatedAt),
		formatTimestamp(user.UpdatedAt),
	)
	return mapError(err)
}

// UpdateUser replaces the mutable fields of an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET full_name = ?, email = ?, password_hash = ?, phone_number = ?, address = ?, pin_code = ?,
		    role = ?, is_active = ?, scheduled_delete_at = ?, updated_at = ?
		WHERE id = ?
	`,
		user.FullName,
		normalizeEmail(user.Email),
		user.PasswordHash,
		user.PhoneNumber,
		user.Address,
		user.PinCode,
		user.Role,
		user.IsActive,
		formatNullableTimestamp(user.ScheduledDeleteAt),
		formatTimestamp(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return s.getUser(ctx, s.db, id)
}

func (s *Storage) getUser(ctx context.Context, q sqlx.QueryerContext, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	var row userRow
	if err := sqlx.GetContext(ctx, q, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return persistence.User{}, mapError(err)
	}
	return s.userFromRow(row)
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	var row userRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalized); err != nil {
		return persistence.User{}, mapError(err)
	}
	return s.userFromRow(row)
}

// ListUsers returns all users ordered by creation time.
func (s *Storage) ListUsers(ctx context.Context) ([]persistence.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, mapError(err)
	}
	return s.usersFromRows(rows)
}

// CountAdmins returns the number of admin accounts.
func (s *Storage) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE role = ?`, persistence.RoleAdmin); err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// DeleteUser removes a user and everything it owns in one transaction.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	return s.inTx(ctx, "delete user", func(tx *sqlx.Tx) error {
		removed, err := s.deleteUserTx(ctx, tx, id, s.now())
		if err != nil {
			return err
		}
		if !removed {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// ListExpiredDeletions returns inactive users whose deadline is at or before reference.
func (s *Storage) ListExpiredDeletions(ctx context.Context, reference time.Time) ([]persistence.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_active = 0 AND scheduled_delete_at IS NOT NULL AND scheduled_delete_at <= ?
		ORDER BY scheduled_delete_at ASC
	`, formatTimestamp(reference))
	if err != nil {
		return nil, mapError(err)
	}
	return s.usersFromRows(rows)
}

// PurgeExpiredUser deletes the user if it still qualifies for purging at reference.
func (s *Storage) PurgeExpiredUser(ctx context.Context, id string, reference time.Time) (bool, error) {
	var removed bool
	err := s.inTx(ctx, "purge user", func(tx *sqlx.Tx) error {
		var eligible int
		err := tx.GetContext(ctx, &eligible, `
			SELECT COUNT(*) FROM users
			WHERE id = ? AND is_active = 0 AND scheduled_delete_at IS NOT NULL AND scheduled_delete_at <= ?
		`, id, formatTimestamp(reference))
		if err != nil {
			return mapError(err)
		}
		if eligible == 0 {
			removed = false
			return nil
		}
		removed, err = s.deleteUserTx(ctx, tx, id, reference)
		return err
	})
	return removed, err
}

// deleteUserTx frees spots held by the user's open reservations and deletes
// the user's rows child-first, so the result does not depend on the
// foreign_keys pragma being enabled.
func (s *Storage) deleteUserTx(ctx context.Context, tx *sqlx.Tx, id string, at time.Time) (bool, error) {
	statements := []struct {
		query string
		args  []any
	}{
		{
			query: `UPDATE parking_spots SET status = ?, is_covered = 0, updated_at = ?
				WHERE id IN (SELECT spot_id FROM reservations WHERE user_id = ? AND leaving_at IS NULL AND spot_id IS NOT NULL)`,
			args: []any{persistence.SpotAvailable, formatTimestamp(at), id},
		},
		{query: `DELETE FROM payments WHERE reservation_id IN (SELECT id FROM reservations WHERE user_id = ?)`, args: []any{id}},
		{query: `DELETE FROM reservations WHERE user_id = ?`, args: []any{id}},
		{query: `DELETE FROM vehicles WHERE user_id = ?`, args: []any{id}},
		{query: `DELETE FROM sessions WHERE user_id = ?`, args: []any{id}},
		{query: `DELETE FROM user_profiles WHERE user_id = ?`, args: []any{id}},
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return false, mapError(err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetProfile returns the optional profile of a user.
func (s *Storage) GetProfile(ctx context.Context, userID string) (persistence.Profile, error) {
	var row struct {
		UserID    string `db:"user_id"`
		Bio       string `db:"bio"`
		AvatarURL string `db:"avatar_url"`
		UpdatedAt string `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT user_id, bio, avatar_url, updated_at FROM user_profiles WHERE user_id = ?`, userID)
	if err != nil {
		return persistence.Profile{}, mapError(err)
	}
	updated, err := s.parseTimestamp(row.UpdatedAt)
	if err != nil {
		return persistence.Profile{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return persistence.Profile{UserID: row.UserID, Bio: row.Bio, AvatarURL: row.AvatarURL, UpdatedAt: updated}, nil
}

// UpsertProfile creates or replaces a user's profile.
func (s *Storage) UpsertProfile(ctx context.Context, profile persistence.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, bio, avatar_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET bio = excluded.bio, avatar_url = excluded.avatar_url, updated_at = excluded.updated_at
	`, profile.UserID, profile.Bio, profile.AvatarURL, formatTimestamp(profile.UpdatedAt))
	return mapError(err)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

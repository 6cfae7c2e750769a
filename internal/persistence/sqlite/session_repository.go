package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/parking-manager/internal/persistence"
)

const sessionColumns = `id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at`

type sessionRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Token       string         `db:"token"`
	Fingerprint string         `db:"fingerprint"`
	ExpiresAt   string         `db:"expires_at"`
	RevokedAt   sql.NullString `db:"revoked_at"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (s *Storage) sessionFromRow(row sessionRow) (persistence.Session, error) {
	session := persistence.Session{
		ID:          row.ID,
		UserID:      row.UserID,
		Token:       row.Token,
		Fingerprint: row.Fingerprint,
	}
	var err error
	if session.ExpiresAt, err = s.parseTimestamp(row.ExpiresAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	if session.RevokedAt, err = s.parseNullableTimestamp(row.RevokedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse revoked_at: %w", err)
	}
	if session.CreatedAt, err = s.parseTimestamp(row.CreatedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = s.parseTimestamp(row.UpdatedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return session, nil
}

// normalizeSession trims the token and fingerprint and rejects incomplete sessions.
func normalizeSession(session persistence.Session) (persistence.Session, error) {
	session.Token = strings.TrimSpace(session.Token)
	session.Fingerprint = strings.TrimSpace(session.Fingerprint)
	if session.ID == "" || session.UserID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	return session, nil
}

// CreateSession stores a new session token for a user.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	normalized, err := normalizeSession(session)
	if err != nil {
		return persistence.Session{}, err
	}
	if normalized.CreatedAt.IsZero() {
		normalized.CreatedAt = s.now()
	}
	if normalized.UpdatedAt.IsZero() {
		normalized.UpdatedAt = normalized.CreatedAt
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		normalized.UserID,
		normalized.Token,
		normalized.Fingerprint,
		formatTimestamp(normalized.ExpiresAt),
		formatNullableTimestamp(normalized.RevokedAt),
		formatTimestamp(normalized.CreatedAt),
		formatTimestamp(normalized.UpdatedAt),
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return s.getSessionBy(ctx, "token", normalized.Token)
}

// GetSession retrieves a session by its token value.
func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	normalized := strings.TrimSpace(token)
	if normalized == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return s.getSessionBy(ctx, "token", normalized)
}

// UpdateSession updates the mutable fields of an existing session. ID, user
// and creation time are preserved.
func (s *Storage) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	normalized, err := normalizeSession(session)
	if err != nil {
		return persistence.Session{}, err
	}
	if normalized.UpdatedAt.IsZero() {
		normalized.UpdatedAt = s.now()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET token = ?, fingerprint = ?, expires_at = ?, revoked_at = ?, updated_at = ?
		WHERE id = ?
	`,
		normalized.Token,
		normalized.Fingerprint,
		formatTimestamp(normalized.ExpiresAt),
		formatNullableTimestamp(normalized.RevokedAt),
		formatTimestamp(normalized.UpdatedAt),
		normalized.ID,
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	if err := requireAffected(result); err != nil {
		return persistence.Session{}, err
	}
	return s.getSessionBy(ctx, "id", normalized.ID)
}

// RevokeSession marks a session as revoked based on its token value.
func (s *Storage) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	normalized := strings.TrimSpace(token)
	if normalized == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	at := formatTimestamp(revokedAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?), updated_at = ? WHERE token = ?
	`, at, at, normalized)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	if err := requireAffected(result); err != nil {
		return persistence.Session{}, err
	}
	return s.getSessionBy(ctx, "token", normalized)
}

// RevokeUserSessions revokes every live session of a user.
func (s *Storage) RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error {
	at := formatTimestamp(revokedAt)
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE user_id = ? AND revoked_at IS NULL
	`, at, at, userID)
	return mapError(err)
}

// DeleteExpiredSessions removes sessions that expired on or before the provided timestamp.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTimestamp(reference))
	return mapError(err)
}

// getSessionBy loads a session by a trusted column name.
func (s *Storage) getSessionBy(ctx context.Context, column, value string) (persistence.Session, error) {
	var row sessionRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+sessionColumns+` FROM sessions WHERE `+column+` = ?`, value); err != nil {
		return persistence.Session{}, mapError(err)
	}
	return s.sessionFromRow(row)
}

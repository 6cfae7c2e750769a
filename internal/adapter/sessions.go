package adapter

import (
	"context"
	"time"

	"github.com/example/parking-manager/internal/application"
	"github.com/example/parking-manager/internal/persistence"
)

// SessionStore exposes persistence.SessionRepository as an application.SessionRepository.
type SessionStore struct {
	repo persistence.SessionRepository
}

var _ application.SessionRepository = (*SessionStore)(nil)

// NewSessionStore wraps the persistence repository.
func NewSessionStore(repo persistence.SessionRepository) *SessionStore {
	return &SessionStore{repo: repo}
}

func (s *SessionStore) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	record, err := s.repo.CreateSession(ctx, sessionToRecord(session))
	if err != nil {
		return application.Session{}, err
	}
	return sessionFromRecord(record), nil
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (application.Session, error) {
	record, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return sessionFromRecord(record), nil
}

func (s *SessionStore) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	record, err := s.repo.UpdateSession(ctx, sessionToRecord(session))
	if err != nil {
		return application.Session{}, err
	}
	return sessionFromRecord(record), nil
}

func (s *SessionStore) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	record, err := s.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return sessionFromRecord(record), nil
}

func (s *SessionStore) RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error {
	return s.repo.RevokeUserSessions(ctx, userID, revokedAt)
}

func (s *SessionStore) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return s.repo.DeleteExpiredSessions(ctx, reference)
}

func sessionToRecord(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   session.RevokedAt,
	}
}

func sessionFromRecord(record persistence.Session) application.Session {
	return application.Session{
		ID:          record.ID,
		UserID:      record.UserID,
		Token:       record.Token,
		Fingerprint: record.Fingerprint,
		ExpiresAt:   record.ExpiresAt,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		RevokedAt:   record.RevokedAt,
	}
}

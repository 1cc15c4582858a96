package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
)

func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

// FindSessionByHash returns the session with its user, or ErrNotFound.
// Expiry is checked by the caller.
func (s *Store) FindSessionByHash(ctx context.Context, hash string) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("token_hash = ?", hash).
		First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (s *Store) DeleteSessionByHash(ctx context.Context, hash string) error {
	return s.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		Delete(&models.Session{}).Error
}

func (s *Store) DeleteDelegationSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND is_delegation = ?", userID, true).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

// DeleteUserSessions signs the user out everywhere.
func (s *Store) DeleteUserSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
}

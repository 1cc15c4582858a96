package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
)

// NormalizeEmail case-folds an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, name string, image *string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"name": name, "image": image}).Error
}

func (s *Store) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("email_verified", true).Error
}

// SetConnection writes the connection flags. Nil metadata leaves the stored
// channel id/name untouched so a known channel is never downgraded.
func (s *Store) SetConnection(ctx context.Context, userID uuid.UUID, connected bool, channelID, channelName *string) error {
	updates := map[string]interface{}{"youtube_connected": connected}
	if channelID != nil {
		updates["youtube_channel_id"] = *channelID
	}
	if channelName != nil {
		updates["youtube_channel_name"] = *channelName
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDelegationPasswordHash stores or, with nil, clears the delegation hash.
func (s *Store) SetDelegationPasswordHash(ctx context.Context, userID uuid.UUID, hash *string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("delegation_password_hash", hash).Error
}

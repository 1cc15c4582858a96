package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
	"gorm.io/gorm"
)

// ReplaceVerification deletes every record for the identifier and purpose
// before inserting v, so only the newest record is authoritative.
func (s *Store) ReplaceVerification(ctx context.Context, v *models.Verification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identifier = ? AND purpose = ?", v.Identifier, v.Purpose).
			Delete(&models.Verification{}).Error; err != nil {
			return err
		}
		return tx.Create(v).Error
	})
}

func (s *Store) CreateVerification(ctx context.Context, v *models.Verification) error {
	return s.db.WithContext(ctx).Create(v).Error
}

// FindVerification returns ErrNotFound for unknown values. Expiry is checked
// by the caller.
func (s *Store) FindVerification(ctx context.Context, purpose models.VerificationPurpose, identifier, value string) (*models.Verification, error) {
	query := s.db.WithContext(ctx).Where("purpose = ? AND value = ?", purpose, value)
	if identifier != "" {
		query = query.Where("identifier = ?", identifier)
	}

	var v models.Verification
	if err := query.Order("created_at DESC").First(&v).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *Store) DeleteVerification(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&models.Verification{}, "id = ?", id).Error
}

func (s *Store) DeleteExpiredVerifications(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.Verification{})
	return result.RowsAffected, result.Error
}

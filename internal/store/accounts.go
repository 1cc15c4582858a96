package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProviderTokens is the decrypted view of an external provider Account row.
type ProviderTokens struct {
	UserID       uuid.UUID
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scope        string
}

// GetProviderTokens returns ErrNotFound when the user has no row for provider.
func (s *Store) GetProviderTokens(ctx context.Context, userID uuid.UUID, provider string) (*ProviderTokens, error) {
	var acct models.Account
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, provider).
		First(&acct).Error; err != nil {
		return nil, notFound(err)
	}

	access, err := s.decrypt(acct.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting access token: %w", err)
	}
	refresh, err := s.decrypt(acct.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("decrypting refresh token: %w", err)
	}

	return &ProviderTokens{
		UserID:       acct.UserID,
		AccountID:    acct.AccountID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    acct.AccessTokenExpiresAt,
		Scope:        acct.Scope,
	}, nil
}

// UpsertProviderAccount links or relinks a provider account. An empty refresh
// token keeps the stored one.
func (s *Store) UpsertProviderAccount(ctx context.Context, provider string, tokens ProviderTokens) error {
	access, err := s.encrypt(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	refresh, err := s.encrypt(tokens.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypting refresh token: %w", err)
	}

	acct := models.Account{
		UserID:               tokens.UserID,
		ProviderID:           provider,
		AccountID:            tokens.AccountID,
		AccessToken:          access,
		RefreshToken:         refresh,
		AccessTokenExpiresAt: tokens.ExpiresAt,
		Scope:                tokens.Scope,
	}

	columns := []string{"account_id", "access_token", "access_token_expires_at", "scope", "updated_at"}
	if refresh != nil {
		columns = append(columns, "refresh_token")
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&acct).Error
}

// UpdateProviderTokens persists a refreshed access token. refreshToken is
// written only when the provider issued a new one.
func (s *Store) UpdateProviderTokens(ctx context.Context, userID uuid.UUID, provider, accessToken string, expiresAt time.Time, refreshToken string) error {
	access, err := s.encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}

	updates := map[string]interface{}{
		"access_token":            access,
		"access_token_expires_at": expiresAt,
	}
	if refreshToken != "" {
		refresh, err := s.encrypt(refreshToken)
		if err != nil {
			return fmt.Errorf("encrypting refresh token: %w", err)
		}
		updates["refresh_token"] = refresh
	}

	result := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ? AND provider_id = ?", userID, provider).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearProviderTokens keeps the row but nulls its tokens and expiry.
func (s *Store) ClearProviderTokens(ctx context.Context, userID uuid.UUID, provider string) error {
	return s.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ? AND provider_id = ?", userID, provider).
		Updates(map[string]interface{}{
			"access_token":            nil,
			"refresh_token":           nil,
			"access_token_expires_at": nil,
		}).Error
}

func (s *Store) DeleteProviderAccount(ctx context.Context, userID uuid.UUID, provider string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, provider).
		Delete(&models.Account{}).Error
}

func (s *Store) HasAccount(ctx context.Context, userID uuid.UUID, provider string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ? AND provider_id = ?", userID, provider).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CredentialPasswordHash returns the primary password hash, or ErrNotFound
// for users without a credential account.
func (s *Store) CredentialPasswordHash(ctx context.Context, userID uuid.UUID) (string, error) {
	var acct models.Account
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, models.ProviderCredential).
		First(&acct).Error; err != nil {
		return "", notFound(err)
	}
	if acct.PasswordHash == nil {
		return "", ErrNotFound
	}
	return *acct.PasswordHash, nil
}

// SetCredentialPassword creates or updates the credential account.
func (s *Store) SetCredentialPassword(ctx context.Context, userID uuid.UUID, hash string) error {
	var acct models.Account
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, models.ProviderCredential).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&models.Account{
			UserID:       userID,
			ProviderID:   models.ProviderCredential,
			AccountID:    userID.String(),
			PasswordHash: &hash,
		}).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&acct).Update("password_hash", hash).Error
}

func (s *Store) encrypt(value string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	sealed, err := s.encryptor.EncryptString(value)
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}

func (s *Store) decrypt(value *string) (string, error) {
	if value == nil || *value == "" {
		return "", nil
	}
	return s.encryptor.DecryptString(*value)
}

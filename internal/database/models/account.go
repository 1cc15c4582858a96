package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifiers for Account rows.
const (
	ProviderCredential = "credential"
	ProviderGoogle     = "google"
)

// Account links a user to one authentication provider. At most one row
// exists per (user, provider).
type Account struct {
	Base
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_accounts_user_provider,priority:1" json:"user_id"`
	ProviderID string    `gorm:"not null;uniqueIndex:idx_accounts_user_provider,priority:2" json:"provider_id"`
	AccountID  string    `gorm:"index" json:"account_id"` // provider subject

	PasswordHash *string `json:"-"` // credential provider only

	// age-encrypted, base64 encoded
	AccessToken          *string    `gorm:"type:text" json:"-"`
	RefreshToken         *string    `gorm:"type:text" json:"-"`
	AccessTokenExpiresAt *time.Time `json:"access_token_expires_at,omitempty"`
	Scope                string     `json:"scope,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

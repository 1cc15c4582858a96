package models

import "time"

type VerificationPurpose string

const (
	PurposeEmailOTP      VerificationPurpose = "email-otp"
	PurposePasswordReset VerificationPurpose = "password-reset"
)

// Verification holds a one-time code or token for an identifier (email).
type Verification struct {
	Base
	Identifier string              `gorm:"index;not null" json:"identifier"`
	Value      string              `gorm:"index;not null" json:"-"`
	Purpose    VerificationPurpose `gorm:"index;not null" json:"purpose"`
	ExpiresAt  time.Time           `gorm:"index;not null" json:"expires_at"`
}

func (Verification) TableName() string {
	return "verifications"
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	Base
	TokenHash    string    `gorm:"uniqueIndex;not null" json:"-"`
	UserID       uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt    time.Time `gorm:"index;not null" json:"expires_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	IsDelegation bool      `gorm:"default:false;index" json:"is_delegation"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

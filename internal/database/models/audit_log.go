package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is append-only.
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action    string     `gorm:"index;not null" json:"action"`
	Details   string     `gorm:"type:text" json:"details"` // JSON
	IPAddress string     `json:"ip_address"`
	UserAgent string     `json:"user_agent"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

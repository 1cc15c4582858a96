package models

import "gorm.io/gorm"

type User struct {
	Base
	Email         string  `gorm:"uniqueIndex;not null" json:"email"` // stored lower-cased
	Name          string  `json:"name"`
	Image         *string `json:"image,omitempty"`
	EmailVerified bool    `gorm:"default:false" json:"email_verified"`

	// Secondary credential for delegated access; nil when delegation is disabled.
	DelegationPasswordHash *string `json:"-"`

	YouTubeConnected   bool    `gorm:"default:false" json:"youtube_connected"`
	YouTubeChannelID   *string `json:"youtube_channel_id,omitempty"`
	YouTubeChannelName *string `json:"youtube_channel_name,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Accounts []Account `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// DelegationEnabled reports whether a delegation password is set.
func (u *User) DelegationEnabled() bool {
	return u.DelegationPasswordHash != nil && *u.DelegationPasswordHash != ""
}

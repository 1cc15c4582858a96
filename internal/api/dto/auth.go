package dto

import (
	"time"

	"github.com/hugh/tubelink/internal/api/validation"
	"github.com/hugh/tubelink/internal/database/models"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"required,max=255"`
}

func (r RegisterRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r LoginRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type AuthResponse struct {
	Token     string    `json:"token"`
	User      UserDTO   `json:"user"`
	Delegated bool      `json:"delegated"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UserDTO struct {
	ID                 string  `json:"id"`
	Email              string  `json:"email"`
	Name               string  `json:"name"`
	Image              *string `json:"image,omitempty"`
	EmailVerified      bool    `json:"email_verified"`
	YouTubeConnected   bool    `json:"youtube_connected"`
	YouTubeChannelID   *string `json:"youtube_channel_id,omitempty"`
	YouTubeChannelName *string `json:"youtube_channel_name,omitempty"`
	DelegationEnabled  bool    `json:"delegation_enabled"`
}

func NewUserDTO(u *models.User) UserDTO {
	return UserDTO{
		ID:                 u.ID.String(),
		Email:              u.Email,
		Name:               u.Name,
		Image:              u.Image,
		EmailVerified:      u.EmailVerified,
		YouTubeConnected:   u.YouTubeConnected,
		YouTubeChannelID:   u.YouTubeChannelID,
		YouTubeChannelName: u.YouTubeChannelName,
		DelegationEnabled:  u.DelegationEnabled(),
	}
}

// MeResponse describes the caller and the kind of session they hold.
type MeResponse struct {
	User        UserDTO `json:"user"`
	SessionKind string  `json:"session_kind"`
}

type BridgeTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

package dto

import "github.com/hugh/tubelink/internal/api/validation"

type DelegationLoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r DelegationLoginRequest) Validate() map[string]string {
	return validation.Struct(r)
}

// SetDelegationPasswordRequest needs CurrentPassword only when a delegation
// password already exists.
type SetDelegationPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=128"`
	CurrentPassword string `json:"current_password,omitempty"`
}

func (r SetDelegationPasswordRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type RemoveDelegationPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

func (r RemoveDelegationPasswordRequest) Validate() map[string]string {
	return validation.Struct(r)
}

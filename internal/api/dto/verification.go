package dto

import "github.com/hugh/tubelink/internal/api/validation"

type ConfirmEmailRequest struct {
	Code string `json:"code" validate:"required,otp"`
}

func (r ConfirmEmailRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r PasswordResetRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type PasswordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func (r PasswordResetConfirmRequest) Validate() map[string]string {
	return validation.Struct(r)
}

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/tubelink/internal/api/dto"
	"github.com/hugh/tubelink/internal/api/middleware"
	"github.com/hugh/tubelink/internal/auth"
)

type VerificationHandler struct {
	authService *auth.Service
	logger      *slog.Logger
}

func NewVerificationHandler(authService *auth.Service, logger *slog.Logger) *VerificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationHandler{authService: authService, logger: logger}
}

func (h *VerificationHandler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.RequestEmailVerification(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.logger.Error("email verification request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to send verification code"})
		return
	}

	writeJSON(w, http.StatusAccepted, dto.SuccessResponse{Message: "Verification code sent"})
}

func (h *VerificationHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	err := h.authService.ConfirmEmailVerification(r.Context(), middleware.GetUserID(r.Context()), req.Code, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid or expired code"})
		default:
			h.logger.Error("email verification failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Verification failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Email verified"})
}

// RequestPasswordReset answers the same way whether or not the email exists.
func (h *VerificationHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.logger.Error("password reset request failed", "error", err)
	}

	writeJSON(w, http.StatusAccepted, dto.SuccessResponse{Message: "If the account exists, a reset link has been sent"})
}

func (h *VerificationHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	err := h.authService.ResetPassword(r.Context(), req.Token, req.Password, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode), errors.Is(err, auth.ErrVerificationExpired):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid or expired token"})
		case errors.Is(err, auth.ErrPasswordTooShort):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		default:
			h.logger.Error("password reset failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Password reset failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Password updated"})
}

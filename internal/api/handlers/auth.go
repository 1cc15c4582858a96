package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hugh/tubelink/internal/api/dto"
	"github.com/hugh/tubelink/internal/api/middleware"
	"github.com/hugh/tubelink/internal/auth"
)

// CookieOptions controls how the session cookie is written.
type CookieOptions struct {
	Secure bool
}

type AuthHandler struct {
	authService *auth.Service
	cookies     CookieOptions
	logger      *slog.Logger
}

func NewAuthHandler(authService *auth.Service, cookies CookieOptions, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{authService: authService, cookies: cookies, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	resp, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}, requestMeta(r))

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists"})
		case errors.Is(err, auth.ErrPasswordTooShort):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		default:
			h.logger.Error("registration failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Registration failed"})
		}
		return
	}

	setSessionCookie(w, resp, h.cookies)
	writeJSON(w, http.StatusCreated, newAuthResponse(resp))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, requestMeta(r))

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials"})
		default:
			h.logger.Error("login failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Login failed"})
		}
		return
	}

	setSessionCookie(w, resp, h.cookies)
	writeJSON(w, http.StatusOK, newAuthResponse(resp))
}

// Logout revokes the presented session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.authService.Logout(r.Context(), token); err != nil {
			h.logger.Warn("session revoke failed", "error", err)
		}
	}

	clearSessionCookie(w, h.cookies)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	user, err := h.authService.GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, dto.MeResponse{
		User:        dto.NewUserDTO(user),
		SessionKind: sess.Kind.String(),
	})
}

func (h *AuthHandler) DelegationLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.DelegationLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	resp, err := h.authService.DelegationLogin(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials"})
		case errors.Is(err, auth.ErrDelegationNotEnabled):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Delegated access is not enabled for this account"})
		default:
			h.logger.Error("delegation login failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Login failed"})
		}
		return
	}

	setSessionCookie(w, resp, h.cookies)
	writeJSON(w, http.StatusOK, newAuthResponse(resp))
}

func (h *AuthHandler) SetDelegationPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.SetDelegationPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	err := h.authService.SetDelegationPassword(r.Context(), middleware.GetSession(r.Context()), req.Password, req.CurrentPassword, requestMeta(r))
	if err != nil {
		h.writeDelegationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Delegation password set"})
}

func (h *AuthHandler) RemoveDelegationPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.RemoveDelegationPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if details := req.Validate(); len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
		return
	}

	err := h.authService.RemoveDelegationPassword(r.Context(), middleware.GetSession(r.Context()), req.Password, requestMeta(r))
	if err != nil {
		h.writeDelegationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Delegation password removed"})
}

func (h *AuthHandler) writeDelegationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrDelegationForbidden):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrCurrentPasswordRequired),
		errors.Is(err, auth.ErrDelegationNotEnabled):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, auth.ErrInvalidCurrentPassword):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error("delegation update failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Update failed"})
	}
}

// BridgeHandler mints identity-bridge tokens for the frontend.
type BridgeHandler struct {
	authService *auth.Service
	minter      auth.TokenMinter
	now         func() time.Time
}

func NewBridgeHandler(authService *auth.Service, minter auth.TokenMinter) *BridgeHandler {
	return &BridgeHandler{authService: authService, minter: minter, now: time.Now}
}

func (h *BridgeHandler) Token(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	issuedAt := h.now()
	token, err := h.minter.Mint(user, auth.BridgeTTLInteractive)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to mint token"})
		return
	}

	writeJSON(w, http.StatusOK, dto.BridgeTokenResponse{
		Token:     token,
		ExpiresAt: issuedAt.Add(auth.BridgeTTLInteractive),
	})
}

func newAuthResponse(resp *auth.AuthResponse) dto.AuthResponse {
	out := dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User),
	}
	if resp.Session != nil {
		out.Delegated = resp.Session.Kind == auth.DelegationSession
		out.ExpiresAt = resp.Session.ExpiresAt
	}
	return out
}

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func setSessionCookie(w http.ResponseWriter, resp *auth.AuthResponse, opts CookieOptions) {
	maxAge := 0
	if resp.Session != nil {
		maxAge = int(time.Until(resp.Session.ExpiresAt).Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func clearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/api/dto"
	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/connection"
	"github.com/hugh/tubelink/internal/provider"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/pkg/crypto"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
)

// Connector links a freshly granted YouTube account.
type Connector interface {
	Connect(ctx context.Context, userID uuid.UUID) (*connection.Result, error)
}

// GoogleHandler runs the Google sign-in flow. A completed sign-in also
// connects the YouTube account the grant covers.
type GoogleHandler struct {
	authorizer  provider.Authorizer
	authService *auth.Service
	connector   Connector
	cookies     CookieOptions
	redirectTo  string
	logger      *slog.Logger
}

func NewGoogleHandler(authorizer provider.Authorizer, authService *auth.Service, connector Connector, cookies CookieOptions, redirectTo string, logger *slog.Logger) *GoogleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if redirectTo == "" {
		redirectTo = "/"
	}
	return &GoogleHandler{
		authorizer:  authorizer,
		authService: authService,
		connector:   connector,
		cookies:     cookies,
		redirectTo:  redirectTo,
		logger:      logger,
	}
}

func (h *GoogleHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := crypto.GenerateToken(24)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to start sign-in"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   oauthStateMaxAge,
	})

	http.Redirect(w, r, h.authorizer.AuthCodeURL(state), http.StatusFound)
}

func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(query.Get("state"))) != 1 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid OAuth state"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/", MaxAge: -1})

	if reason := query.Get("error"); reason != "" {
		h.redirect(w, r, "error", reason)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Missing authorization code"})
		return
	}

	ctx := r.Context()
	token, err := h.authorizer.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("google code exchange failed", "error", err)
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: "Google sign-in failed"})
		return
	}

	profile, err := h.authorizer.UserInfo(ctx, token.AccessToken)
	if err != nil {
		h.logger.Warn("google userinfo failed", "error", err)
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: "Google sign-in failed"})
		return
	}

	expiry := token.Expiry
	resp, err := h.authService.LoginWithGoogle(ctx, auth.OAuthIdentity{
		Subject:       profile.Subject,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		Name:          profile.Name,
		Image:         profile.Picture,
		Tokens: store.ProviderTokens{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresAt:    &expiry,
			Scope:        token.Scope,
		},
	}, requestMeta(r))
	if err != nil {
		h.logger.Error("google login failed", "error", err)
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Google sign-in failed"})
		return
	}

	setSessionCookie(w, resp, h.cookies)

	// The session stands even if connecting fails; the user can retry.
	if _, err := h.connector.Connect(ctx, resp.User.ID); err != nil {
		h.logger.Warn("youtube connect after sign-in failed", "user_id", resp.User.ID, "error", err)
		h.redirect(w, r, "youtube", "error")
		return
	}

	h.redirect(w, r, "youtube", "connected")
}

func (h *GoogleHandler) redirect(w http.ResponseWriter, r *http.Request, key, value string) {
	target, err := url.Parse(h.redirectTo)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/tubelink/internal/api/handlers"
	"github.com/hugh/tubelink/internal/api/middleware"
	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

func setupVerificationTestRouter(t *testing.T) (*chi.Mux, *fixture) {
	f := newFixture(t)
	handler := handlers.NewVerificationHandler(f.Auth, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/auth/password-reset/request", handler.RequestPasswordReset)
	r.Post("/api/v1/auth/password-reset/confirm", handler.ConfirmPasswordReset)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(f.Sessions))
		r.Use(middleware.RequireOwner)
		r.Post("/api/v1/auth/verify-email/request", handler.RequestEmail)
		r.Post("/api/v1/auth/verify-email/confirm", handler.ConfirmEmail)
	})

	return r, f
}

func (m *recordingMailer) lastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Body
}

func TestVerificationHandler_Email(t *testing.T) {
	router, f := setupVerificationTestRouter(t)
	defer f.Cleanup()
	ctx := context.Background()

	user := &models.User{Email: "unverified@example.com", Name: "Unverified"}
	require.NoError(t, f.Store.CreateUser(ctx, user))
	token := f.token(t, user, auth.OwnerSession)

	req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/auth/verify-email/request", nil, token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	code := otpPattern.FindString(f.Mailer.lastBody())
	require.NotEmpty(t, code)

	t.Run("malformed code", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/auth/verify-email/confirm", map[string]string{"code": "abc"}, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("wrong code", func(t *testing.T) {
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/auth/verify-email/confirm", map[string]string{"code": wrong}, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("correct code", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/auth/verify-email/confirm", map[string]string{"code": code}, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)

		reloaded, err := f.Store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.EmailVerified)
	})

	t.Run("delegated session is refused", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/auth/verify-email/request", nil, f.token(t, user, auth.DelegationSession))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestVerificationHandler_PasswordReset(t *testing.T) {
	router, f := setupVerificationTestRouter(t)
	defer f.Cleanup()

	t.Run("unknown email looks the same", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/password-reset/request", map[string]string{"email": "ghost@example.com"})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.Equal(t, 0, f.Mailer.count())
	})

	req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/password-reset/request", map[string]string{"email": f.User.Email})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, 1, f.Mailer.count())

	body := f.Mailer.lastBody()
	line := strings.SplitN(body, "\n", 2)[0]
	resetToken := strings.TrimSpace(line[strings.LastIndex(line, ":")+1:])
	require.NotEmpty(t, resetToken)

	t.Run("bad token", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/password-reset/confirm", map[string]string{
			"token":    "not-the-token",
			"password": "brand-new-password",
		})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/password-reset/confirm", map[string]string{
			"token":    resetToken,
			"password": "brand-new-password",
		})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		_, err := f.Auth.Login(context.Background(), auth.LoginInput{Email: f.User.Email, Password: "brand-new-password"}, auth.RequestMeta{})
		assert.NoError(t, err)
	})

	t.Run("token is single use", func(t *testing.T) {
		req := testutil.UnauthenticatedRequest(t, "POST", "/api/v1/auth/password-reset/confirm", map[string]string{
			"token":    resetToken,
			"password": "another-password",
		})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hugh/tubelink/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGoogle struct {
	server        *httptest.Server
	tokenCalls    atomic.Int32
	revokeCalls   atomic.Int32
	tokenStatus   int
	issueRefresh  string
	channels      []map[string]interface{}
	lastRevoked   atomic.Value
	lastGrantType atomic.Value
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	f := &fakeGoogle{tokenStatus: http.StatusOK}
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())
		f.lastGrantType.Store(r.PostForm.Get("grant_type"))

		if f.tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		body := map[string]interface{}{
			"access_token": "fresh-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        "openid email",
		}
		if f.issueRefresh != "" {
			body["refresh_token"] = f.issueRefresh
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		f.revokeCalls.Add(1)
		require.NoError(t, r.ParseForm())
		f.lastRevoked.Store(r.PostForm.Get("token"))
		if r.PostForm.Get("token") == "already-invalid" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer yt-access", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"items": f.channels})
	})

	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":             "sub-1",
			"email":          "creator@example.com",
			"verified_email": true,
			"name":           "Creator",
			"picture":        "https://example.com/p.png",
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) client() *provider.Google {
	return provider.NewGoogle(provider.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/callback",
		Timeout:      5 * time.Second,
		TokenURL:     f.server.URL + "/token",
		AuthURL:      f.server.URL + "/auth",
		RevokeURL:    f.server.URL + "/revoke",
		APIEndpoint:  f.server.URL + "/",
	})
}

func TestGoogle_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("returns new access token without rotation", func(t *testing.T) {
		f := newFakeGoogle(t)

		tok, err := f.client().Refresh(ctx, "old-refresh")
		require.NoError(t, err)
		assert.Equal(t, "fresh-access", tok.AccessToken)
		assert.Empty(t, tok.RefreshToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)
		assert.Equal(t, int32(1), f.tokenCalls.Load())
		assert.Equal(t, "refresh_token", f.lastGrantType.Load())
	})

	t.Run("reports rotated refresh token", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.issueRefresh = "new-refresh"

		tok, err := f.client().Refresh(ctx, "old-refresh")
		require.NoError(t, err)
		assert.Equal(t, "new-refresh", tok.RefreshToken)
	})

	t.Run("provider error", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.tokenStatus = http.StatusBadRequest

		_, err := f.client().Refresh(ctx, "old-refresh")
		assert.Error(t, err)
	})

	t.Run("missing refresh token", func(t *testing.T) {
		f := newFakeGoogle(t)

		_, err := f.client().Refresh(ctx, "")
		assert.Error(t, err)
		assert.Zero(t, f.tokenCalls.Load())
	})
}

func TestGoogle_Revoke(t *testing.T) {
	ctx := context.Background()
	f := newFakeGoogle(t)

	require.NoError(t, f.client().Revoke(ctx, "live-token"))
	assert.Equal(t, "live-token", f.lastRevoked.Load())

	err := f.client().Revoke(ctx, "already-invalid")
	assert.ErrorIs(t, err, provider.ErrRevokeFailed)

	require.NoError(t, f.client().Revoke(ctx, ""))
	assert.Equal(t, int32(2), f.revokeCalls.Load())
}

func TestGoogle_MineChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("returns first channel", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.channels = []map[string]interface{}{
			{"id": "UC123", "snippet": map[string]interface{}{"title": "My Channel"}},
		}

		ch, err := f.client().MineChannel(ctx, "yt-access")
		require.NoError(t, err)
		require.NotNil(t, ch)
		assert.Equal(t, "UC123", ch.ID)
		assert.Equal(t, "My Channel", ch.Title)
	})

	t.Run("no channel", func(t *testing.T) {
		f := newFakeGoogle(t)

		ch, err := f.client().MineChannel(ctx, "yt-access")
		require.NoError(t, err)
		assert.Nil(t, ch)
	})
}

func TestGoogle_AuthorizationFlow(t *testing.T) {
	ctx := context.Background()
	f := newFakeGoogle(t)
	g := f.client()

	authURL := g.AuthCodeURL("state-123")
	assert.Contains(t, authURL, f.server.URL+"/auth")
	assert.Contains(t, authURL, "state=state-123")
	assert.Contains(t, authURL, "access_type=offline")

	tok, err := g.Exchange(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Equal(t, "authorization_code", f.lastGrantType.Load())

	profile, err := g.UserInfo(ctx, "access")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", profile.Subject)
	assert.Equal(t, "creator@example.com", profile.Email)
	assert.True(t, profile.EmailVerified)
}

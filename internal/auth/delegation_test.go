package auth_test

import (
	"context"
	"testing"

	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countSessions(t *testing.T, f *authFixture, delegation bool) int64 {
	t.Helper()
	var count int64
	f.DB.Model(&models.Session{}).Where("user_id = ? AND is_delegation = ?", f.User.ID, delegation).Count(&count)
	return count
}

func countAudit(t *testing.T, f *authFixture, action string) int64 {
	t.Helper()
	var count int64
	f.DB.Model(&models.AuditLog{}).Where("action = ?", action).Count(&count)
	return count
}

func findAudit(entries []models.AuditLog, action string) *models.AuditLog {
	for i := range entries {
		if entries[i].Action == action {
			return &entries[i]
		}
	}
	return nil
}

func storedHash(t *testing.T, f *authFixture) *string {
	t.Helper()
	user, err := f.Store.GetUser(context.Background(), f.User.ID)
	require.NoError(t, err)
	return user.DelegationPasswordHash
}

func TestService_SetDelegationPassword(t *testing.T) {
	f := newAuthFixture(t)
	defer f.Cleanup()
	ctx := context.Background()
	owner := f.ownerSession(t)

	t.Run("enables delegation with a hashed password", func(t *testing.T) {
		require.NoError(t, f.Service.SetDelegationPassword(ctx, owner, "delegate-pass", "", auth.RequestMeta{}))

		hash := storedHash(t, f)
		require.NotNil(t, hash)
		assert.NotEqual(t, "delegate-pass", *hash)
		assert.True(t, auth.CheckPassword("delegate-pass", *hash))
	})

	t.Run("audit entry carries the caller's address", func(t *testing.T) {
		f := newAuthFixture(t)
		defer f.Cleanup()
		meta := auth.RequestMeta{IPAddress: "198.51.100.7", UserAgent: "settings-page"}

		require.NoError(t, f.Service.SetDelegationPassword(ctx, f.ownerSession(t), "delegate-pass", "", meta))

		entries, err := f.Store.ListAuditLogs(ctx, f.User.ID, 10)
		require.NoError(t, err)
		entry := findAudit(entries, auth.AuditDelegationPasswordSet)
		require.NotNil(t, entry)
		assert.Equal(t, "198.51.100.7", entry.IPAddress)
		assert.Equal(t, "settings-page", entry.UserAgent)
	})

	t.Run("rotation without current password fails and keeps hash", func(t *testing.T) {
		before := storedHash(t, f)

		err := f.Service.SetDelegationPassword(ctx, owner, "another-pass", "", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrCurrentPasswordRequired)
		assert.Equal(t, *before, *storedHash(t, f))
	})

	t.Run("rotation with wrong current password fails", func(t *testing.T) {
		before := storedHash(t, f)

		err := f.Service.SetDelegationPassword(ctx, owner, "another-pass", "not-it-at-all", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrInvalidCurrentPassword)
		assert.Equal(t, *before, *storedHash(t, f))
	})

	t.Run("rotation with current password", func(t *testing.T) {
		require.NoError(t, f.Service.SetDelegationPassword(ctx, owner, "another-pass", "delegate-pass", auth.RequestMeta{}))
		assert.True(t, auth.CheckPassword("another-pass", *storedHash(t, f)))
	})

	t.Run("minimum length", func(t *testing.T) {
		err := f.Service.SetDelegationPassword(ctx, owner, "short", "another-pass", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrPasswordTooShort)
	})

	t.Run("delegation session cannot change delegation settings", func(t *testing.T) {
		delegated := &auth.Session{UserID: f.User.ID, Kind: auth.DelegationSession}

		err := f.Service.SetDelegationPassword(ctx, delegated, "takeover-pass", "another-pass", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrDelegationForbidden)
		assert.True(t, auth.CheckPassword("another-pass", *storedHash(t, f)))

		err = f.Service.RemoveDelegationPassword(ctx, delegated, "another-pass", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrDelegationForbidden)
		assert.NotNil(t, storedHash(t, f))
	})
}

func TestService_DelegationLogin(t *testing.T) {
	f := newAuthFixture(t)
	defer f.Cleanup()
	ctx := context.Background()
	owner := f.ownerSession(t)

	t.Run("not enabled", func(t *testing.T) {
		_, err := f.Service.DelegationLogin(ctx, f.User.Email, "delegate-pass", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrDelegationNotEnabled)
	})

	require.NoError(t, f.Service.SetDelegationPassword(ctx, owner, "delegate-pass", "", auth.RequestMeta{}))

	t.Run("wrong password creates no session and no success entry", func(t *testing.T) {
		_, err := f.Service.DelegationLogin(ctx, f.User.Email, "wrongpass", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.Zero(t, countSessions(t, f, true))
		assert.Zero(t, countAudit(t, f, auth.AuditDelegationLogin))
		assert.Equal(t, int64(1), countAudit(t, f, auth.AuditDelegationLoginFailed))
	})

	t.Run("unknown email uses the same error", func(t *testing.T) {
		_, err := f.Service.DelegationLogin(ctx, "ghost@example.com", "delegate-pass", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("success creates a delegation session", func(t *testing.T) {
		resp, err := f.Service.DelegationLogin(ctx, "  "+f.User.Email+" ", "delegate-pass", auth.RequestMeta{IPAddress: "10.0.0.9"})
		require.NoError(t, err)
		assert.Equal(t, auth.DelegationSession, resp.Session.Kind)
		assert.Equal(t, int64(1), countSessions(t, f, true))
		assert.Equal(t, int64(1), countAudit(t, f, auth.AuditDelegationLogin))

		sess, err := f.Sessions.Authenticate(ctx, resp.Token)
		require.NoError(t, err)
		assert.ErrorIs(t, auth.RequireOwner(sess), auth.ErrDelegationForbidden)
	})

	t.Run("primary password does not work on the delegation path", func(t *testing.T) {
		_, err := f.Service.DelegationLogin(ctx, f.User.Email, "testpassword123", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestService_RemoveDelegationPassword(t *testing.T) {
	f := newAuthFixture(t)
	defer f.Cleanup()
	ctx := context.Background()
	owner := f.ownerSession(t)

	t.Run("not enabled", func(t *testing.T) {
		err := f.Service.RemoveDelegationPassword(ctx, owner, "delegate-pass", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrDelegationNotEnabled)
	})

	require.NoError(t, f.Service.SetDelegationPassword(ctx, owner, "delegate-pass", "", auth.RequestMeta{}))
	resp, err := f.Service.DelegationLogin(ctx, f.User.Email, "delegate-pass", auth.RequestMeta{})
	require.NoError(t, err)

	t.Run("wrong password keeps delegation", func(t *testing.T) {
		err := f.Service.RemoveDelegationPassword(ctx, owner, "wrong-password", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrInvalidCurrentPassword)
		assert.NotNil(t, storedHash(t, f))
	})

	t.Run("clears hash and revokes delegation sessions", func(t *testing.T) {
		require.NoError(t, f.Service.RemoveDelegationPassword(ctx, owner, "delegate-pass", auth.RequestMeta{}))
		assert.Nil(t, storedHash(t, f))

		_, err := f.Sessions.Authenticate(ctx, resp.Token)
		assert.ErrorIs(t, err, auth.ErrInvalidSession)
		assert.Equal(t, int64(1), countSessions(t, f, false))

		_, err = f.Service.DelegationLogin(ctx, f.User.Email, "delegate-pass", auth.RequestMeta{})
		assert.ErrorIs(t, err, auth.ErrDelegationNotEnabled)
	})
}

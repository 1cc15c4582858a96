package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestStore_Users(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		user := &models.User{Email: "  Creator@Example.COM ", Name: "Creator"}
		require.NoError(t, tc.Store.CreateUser(ctx, user))
		assert.Equal(t, "creator@example.com", user.Email)

		found, err := tc.Store.GetUserByEmail(ctx, "CREATOR@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := tc.Store.GetUser(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = tc.Store.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("set connection keeps metadata when nil", func(t *testing.T) {
		require.NoError(t, tc.Store.SetConnection(ctx, tc.User.ID, true, strPtr("UC123"), strPtr("My Channel")))
		require.NoError(t, tc.Store.SetConnection(ctx, tc.User.ID, true, nil, nil))

		user, err := tc.Store.GetUser(ctx, tc.User.ID)
		require.NoError(t, err)
		assert.True(t, user.YouTubeConnected)
		require.NotNil(t, user.YouTubeChannelName)
		assert.Equal(t, "My Channel", *user.YouTubeChannelName)
		assert.Equal(t, "UC123", *user.YouTubeChannelID)
	})

	t.Run("set connection on unknown user", func(t *testing.T) {
		err := tc.Store.SetConnection(ctx, uuid.New(), false, nil, nil)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delegation hash set and cleared", func(t *testing.T) {
		require.NoError(t, tc.Store.SetDelegationPasswordHash(ctx, tc.User.ID, strPtr("hash")))
		user, err := tc.Store.GetUser(ctx, tc.User.ID)
		require.NoError(t, err)
		assert.True(t, user.DelegationEnabled())

		require.NoError(t, tc.Store.SetDelegationPasswordHash(ctx, tc.User.ID, nil))
		user, err = tc.Store.GetUser(ctx, tc.User.ID)
		require.NoError(t, err)
		assert.False(t, user.DelegationEnabled())
	})
}

func TestStore_ProviderAccounts(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)

	testutil.LinkGoogleAccount(t, tc.Store, tc.User.ID, "access-1", "refresh-1", expiry)

	t.Run("tokens are encrypted at rest", func(t *testing.T) {
		raw, ok := testutil.RawAccount(t, tc.DB, tc.User.ID, models.ProviderGoogle)
		require.True(t, ok)
		require.NotNil(t, raw.AccessToken)
		assert.NotEqual(t, "access-1", *raw.AccessToken)

		tokens, err := tc.Store.GetProviderTokens(ctx, tc.User.ID, models.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, "access-1", tokens.AccessToken)
		assert.Equal(t, "refresh-1", tokens.RefreshToken)
		require.NotNil(t, tokens.ExpiresAt)
		assert.True(t, expiry.Equal(*tokens.ExpiresAt))
	})

	t.Run("upsert keeps one row and preserves refresh token", func(t *testing.T) {
		err := tc.Store.UpsertProviderAccount(ctx, models.ProviderGoogle, store.ProviderTokens{
			UserID:      tc.User.ID,
			AccountID:   "google-sub",
			AccessToken: "access-2",
			ExpiresAt:   &expiry,
		})
		require.NoError(t, err)

		var count int64
		tc.DB.Model(&models.Account{}).Where("user_id = ? AND provider_id = ?", tc.User.ID, models.ProviderGoogle).Count(&count)
		assert.Equal(t, int64(1), count)

		tokens, err := tc.Store.GetProviderTokens(ctx, tc.User.ID, models.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, "access-2", tokens.AccessToken)
		assert.Equal(t, "refresh-1", tokens.RefreshToken)
	})

	t.Run("update without refresh token preserves it", func(t *testing.T) {
		require.NoError(t, tc.Store.UpdateProviderTokens(ctx, tc.User.ID, models.ProviderGoogle, "access-3", expiry, ""))

		tokens, err := tc.Store.GetProviderTokens(ctx, tc.User.ID, models.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, "access-3", tokens.AccessToken)
		assert.Equal(t, "refresh-1", tokens.RefreshToken)
	})

	t.Run("update with refresh token rotates it", func(t *testing.T) {
		require.NoError(t, tc.Store.UpdateProviderTokens(ctx, tc.User.ID, models.ProviderGoogle, "access-4", expiry, "refresh-2"))

		tokens, err := tc.Store.GetProviderTokens(ctx, tc.User.ID, models.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, "refresh-2", tokens.RefreshToken)
	})

	t.Run("clear tokens keeps row", func(t *testing.T) {
		require.NoError(t, tc.Store.ClearProviderTokens(ctx, tc.User.ID, models.ProviderGoogle))

		raw, ok := testutil.RawAccount(t, tc.DB, tc.User.ID, models.ProviderGoogle)
		require.True(t, ok)
		assert.Nil(t, raw.AccessToken)
		assert.Nil(t, raw.RefreshToken)
		assert.Nil(t, raw.AccessTokenExpiresAt)
	})

	t.Run("delete removes row", func(t *testing.T) {
		require.NoError(t, tc.Store.DeleteProviderAccount(ctx, tc.User.ID, models.ProviderGoogle))

		_, err := tc.Store.GetProviderTokens(ctx, tc.User.ID, models.ProviderGoogle)
		assert.ErrorIs(t, err, store.ErrNotFound)

		has, err := tc.Store.HasAccount(ctx, tc.User.ID, models.ProviderCredential)
		require.NoError(t, err)
		assert.True(t, has)
	})
}

func TestStore_Sessions(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()
	now := time.Now()

	owner := &models.Session{TokenHash: "owner", UserID: tc.User.ID, ExpiresAt: now.Add(time.Hour)}
	delegated := &models.Session{TokenHash: "delegated", UserID: tc.User.ID, ExpiresAt: now.Add(time.Hour), IsDelegation: true}
	expired := &models.Session{TokenHash: "expired", UserID: tc.User.ID, ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []*models.Session{owner, delegated, expired} {
		require.NoError(t, tc.Store.CreateSession(ctx, s))
	}

	found, err := tc.Store.FindSessionByHash(ctx, "delegated")
	require.NoError(t, err)
	assert.True(t, found.IsDelegation)
	require.NotNil(t, found.User)
	assert.Equal(t, tc.User.Email, found.User.Email)

	removed, err := tc.Store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = tc.Store.DeleteDelegationSessions(ctx, tc.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = tc.Store.FindSessionByHash(ctx, "owner")
	assert.NoError(t, err)
	_, err = tc.Store.FindSessionByHash(ctx, "delegated")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Verifications(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()
	expiry := time.Now().Add(10 * time.Minute)

	first := &models.Verification{Identifier: tc.User.Email, Value: "111111", Purpose: models.PurposeEmailOTP, ExpiresAt: expiry}
	second := &models.Verification{Identifier: tc.User.Email, Value: "222222", Purpose: models.PurposeEmailOTP, ExpiresAt: expiry}
	require.NoError(t, tc.Store.ReplaceVerification(ctx, first))
	require.NoError(t, tc.Store.ReplaceVerification(ctx, second))

	_, err := tc.Store.FindVerification(ctx, models.PurposeEmailOTP, tc.User.Email, "111111")
	assert.ErrorIs(t, err, store.ErrNotFound)

	found, err := tc.Store.FindVerification(ctx, models.PurposeEmailOTP, tc.User.Email, "222222")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	require.NoError(t, tc.Store.DeleteVerification(ctx, found.ID))
	_, err = tc.Store.FindVerification(ctx, models.PurposeEmailOTP, tc.User.Email, "222222")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_AuditLog(t *testing.T) {
	tc := testutil.NewTestContext(t)
	defer tc.Cleanup()
	ctx := context.Background()

	userID := tc.User.ID
	require.NoError(t, tc.Store.CreateAuditLog(ctx, &models.AuditLog{UserID: &userID, Action: "delegation_login", Details: `{"ok":true}`}))

	entries, err := tc.Store.ListAuditLogs(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "delegation_login", entries[0].Action)
	assert.NotEqual(t, uuid.Nil, entries[0].ID)
}

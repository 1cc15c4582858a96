package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bridgeUser() *models.User {
	user := &models.User{Email: "creator@example.com", Name: "Creator"}
	user.ID = uuid.New()
	return user
}

func TestBridgeService_Mint(t *testing.T) {
	bridge := auth.NewBridgeService("test-secret")
	user := bridgeUser()

	t.Run("carries user claims", func(t *testing.T) {
		token, err := bridge.Mint(user, auth.BridgeTTLInteractive)
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		claims, err := bridge.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.Subject)
		assert.Equal(t, user.Email, claims.Email)
		assert.Equal(t, user.Name, claims.Name)
		assert.Equal(t, "session", claims.Source)
		assert.Equal(t, "tubelink", claims.Issuer)

		id, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)
	})

	t.Run("lifetime is a parameter", func(t *testing.T) {
		short, err := bridge.Mint(user, auth.BridgeTTLInteractive)
		require.NoError(t, err)
		long, err := bridge.Mint(user, auth.BridgeTTLSync)
		require.NoError(t, err)

		shortClaims, err := bridge.Validate(short)
		require.NoError(t, err)
		longClaims, err := bridge.Validate(long)
		require.NoError(t, err)

		shortTTL := shortClaims.ExpiresAt.Sub(shortClaims.IssuedAt.Time)
		longTTL := longClaims.ExpiresAt.Sub(longClaims.IssuedAt.Time)
		assert.Equal(t, 24*time.Hour, shortTTL)
		assert.Equal(t, 30*24*time.Hour, longTTL)
	})

	t.Run("nil user", func(t *testing.T) {
		_, err := bridge.Mint(nil, time.Hour)
		assert.Error(t, err)
	})
}

func TestBridgeService_Validate(t *testing.T) {
	user := bridgeUser()

	t.Run("rejects expired token", func(t *testing.T) {
		bridge := auth.NewBridgeService("test-secret")

		token, err := bridge.Mint(user, time.Millisecond)
		require.NoError(t, err)

		// jwt numeric dates have second precision
		time.Sleep(1100 * time.Millisecond)

		_, err = bridge.Validate(token)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		token, err := auth.NewBridgeService("secret-one").Mint(user, time.Hour)
		require.NoError(t, err)

		_, err = auth.NewBridgeService("secret-two").Validate(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		_, err := auth.NewBridgeService("test-secret").Validate("not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("rejects non-HMAC algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": user.ID.String(),
			"iss": "tubelink",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.NewBridgeService("test-secret").Validate(signed)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("rejects foreign issuer", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": user.ID.String(),
			"iss": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = auth.NewBridgeService("test-secret").Validate(signed)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

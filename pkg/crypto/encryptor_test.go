package crypto

import (
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityKey(t *testing.T) string {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	return identity.String()
}

func TestEncryptor_ProviderTokenRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(newIdentityKey(t))
	require.NoError(t, err)

	tokens := map[string]string{
		"access":  "ya29.a0AfH6SMBx-access-token",
		"refresh": "1//0gLq-refresh-token",
		"empty":   "",
	}
	for name, token := range tokens {
		t.Run(name, func(t *testing.T) {
			sealed, err := enc.EncryptString(token)
			require.NoError(t, err)
			if token != "" {
				assert.NotContains(t, sealed, token)
			}

			opened, err := enc.DecryptString(sealed)
			require.NoError(t, err)
			assert.Equal(t, token, opened)
		})
	}
}

func TestEncryptor_SealIsRandomized(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	a, err := enc.EncryptString("ya29.same-token")
	require.NoError(t, err)
	b, err := enc.EncryptString("ya29.same-token")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryptor_SurvivesRestartWithSameKey(t *testing.T) {
	key := newIdentityKey(t)

	first, err := NewEncryptor(key)
	require.NoError(t, err)
	sealed, err := first.EncryptString("1//refresh")
	require.NoError(t, err)

	second, err := NewEncryptor(key)
	require.NoError(t, err)
	opened, err := second.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "1//refresh", opened)
}

func TestEncryptor_GeneratedKeyIsNotShared(t *testing.T) {
	first, err := NewEncryptor("")
	require.NoError(t, err)
	second, err := NewEncryptor("")
	require.NoError(t, err)

	sealed, err := first.EncryptString("1//refresh")
	require.NoError(t, err)

	_, err = second.DecryptString(sealed)
	assert.Error(t, err)
}

func TestEncryptor_RejectsBadInput(t *testing.T) {
	_, err := NewEncryptor("not-an-age-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing identity")

	enc, err := NewEncryptor("")
	require.NoError(t, err)

	_, err = enc.DecryptString("%%%not base64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding sealed token")

	_, err = enc.DecryptString("cGxhaW50ZXh0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening sealed token")
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	assert.Len(t, token, 43)
	assert.False(t, strings.ContainsAny(token, "+/="))

	other, err := GenerateToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashToken(t *testing.T) {
	hash := HashToken("bearer", "pepper")
	assert.Len(t, hash, 64)
	assert.NotContains(t, hash, "bearer")
	assert.Equal(t, hash, HashToken("bearer", "pepper"))
	assert.NotEqual(t, hash, HashToken("bearer", "other-pepper"))
	assert.NotEqual(t, hash, HashToken("bearer2", "pepper"))
}

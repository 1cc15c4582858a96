package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateToken returns an opaque URL-safe bearer carrying n random bytes.
// Session bearers use 32 bytes, which encode to 43 characters.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 of a bearer keyed by pepper. Only this
// digest is stored; lookups hash the presented bearer the same way.
func HashToken(token, pepper string) string {
	sum := sha256.Sum256([]byte(token + ":" + pepper))
	return hex.EncodeToString(sum[:])
}

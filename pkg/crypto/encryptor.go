package crypto

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
)

// Encryptor seals OAuth tokens before they reach the accounts table. Sealed
// values are base64 age payloads addressed to the identity's own recipient.
type Encryptor struct {
	identity *age.X25519Identity
}

// NewEncryptor parses an AGE-SECRET-KEY identity. An empty key generates a
// throwaway identity, so tokens sealed by one process are unreadable after a
// restart.
func NewEncryptor(key string) (*Encryptor, error) {
	if key == "" {
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating identity: %w", err)
		}
		return &Encryptor{identity: identity}, nil
	}

	identity, err := age.ParseX25519Identity(key)
	if err != nil {
		return nil, fmt.Errorf("parsing identity: %w", err)
	}
	return &Encryptor{identity: identity}, nil
}

func (e *Encryptor) EncryptString(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, e.identity.Recipient())
	if err != nil {
		return "", fmt.Errorf("sealing token: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("sealing token: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("sealing token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (e *Encryptor) DecryptString(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding sealed token: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), e.identity)
	if err != nil {
		return "", fmt.Errorf("opening sealed token: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading sealed token: %w", err)
	}
	return string(plaintext), nil
}

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
)

// Authenticator defines the primary login operations.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput, meta RequestMeta) (*AuthResponse, error)
	Login(ctx context.Context, input LoginInput, meta RequestMeta) (*AuthResponse, error)
	Logout(ctx context.Context, token string) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Delegator defines the delegated-access operations.
type Delegator interface {
	SetDelegationPassword(ctx context.Context, sess *Session, newPassword, currentPassword string, meta RequestMeta) error
	RemoveDelegationPassword(ctx context.Context, sess *Session, password string, meta RequestMeta) error
	DelegationLogin(ctx context.Context, email, password string, meta RequestMeta) (*AuthResponse, error)
}

// SessionAuthenticator resolves bearer tokens to sessions.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*Session, error)
}

// TokenMinter mints bridge tokens for the downstream service.
type TokenMinter interface {
	Mint(user *models.User, ttl time.Duration) (string, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator        = (*Service)(nil)
	_ Delegator            = (*Service)(nil)
	_ SessionAuthenticator = (*SessionManager)(nil)
	_ TokenMinter          = (*BridgeService)(nil)
)

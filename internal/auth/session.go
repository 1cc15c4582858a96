package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/pkg/crypto"
)

var (
	ErrInvalidSession      = errors.New("invalid session")
	ErrSessionExpired      = errors.New("session has expired")
	ErrDelegationForbidden = errors.New("delegated sessions cannot perform this action")
)

// SessionKind separates the owner's full-trust session from the restricted
// session created through the delegation password.
type SessionKind int

const (
	OwnerSession SessionKind = iota
	DelegationSession
)

func (k SessionKind) String() string {
	switch k {
	case OwnerSession:
		return "owner"
	case DelegationSession:
		return "delegation"
	default:
		return fmt.Sprintf("SessionKind(%d)", int(k))
	}
}

func kindOf(s *models.Session) SessionKind {
	if s.IsDelegation {
		return DelegationSession
	}
	return OwnerSession
}

// Session is an authenticated primary session.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	User      *models.User
	Kind      SessionKind
	ExpiresAt time.Time
}

// RequireOwner gates privileged operations. Every kind must be listed here.
func RequireOwner(s *Session) error {
	if s == nil {
		return ErrInvalidSession
	}
	switch s.Kind {
	case OwnerSession:
		return nil
	case DelegationSession:
		return ErrDelegationForbidden
	default:
		return ErrInvalidSession
	}
}

// RequestMeta is the creation metadata recorded on sessions and audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// IssuedSession carries the plaintext bearer. It is returned once and never
// stored.
type IssuedSession struct {
	Token   string
	Session *Session
}

const sessionTokenBytes = 32

// SessionManager issues and resolves opaque session tokens. Only a peppered
// hash of each token is persisted.
type SessionManager struct {
	store         *store.Store
	secret        string
	ownerTTL      time.Duration
	delegationTTL time.Duration
	now           func() time.Time
}

func NewSessionManager(s *store.Store, secret string, ownerTTL, delegationTTL time.Duration) *SessionManager {
	if ownerTTL <= 0 {
		ownerTTL = 7 * 24 * time.Hour
	}
	if delegationTTL <= 0 {
		delegationTTL = 24 * time.Hour
	}
	return &SessionManager{
		store:         s,
		secret:        secret,
		ownerTTL:      ownerTTL,
		delegationTTL: delegationTTL,
		now:           time.Now,
	}
}

// digest keys bearers with the session secret. Reset tokens use it too.
func (m *SessionManager) digest(token string) string {
	return crypto.HashToken(token, m.secret)
}

func (m *SessionManager) ttl(kind SessionKind) time.Duration {
	if kind == DelegationSession {
		return m.delegationTTL
	}
	return m.ownerTTL
}

func (m *SessionManager) Issue(ctx context.Context, user *models.User, kind SessionKind, meta RequestMeta) (*IssuedSession, error) {
	token, err := crypto.GenerateToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}

	record := &models.Session{
		TokenHash:    m.digest(token),
		UserID:       user.ID,
		ExpiresAt:    m.now().Add(m.ttl(kind)),
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		IsDelegation: kind == DelegationSession,
	}
	if err := m.store.CreateSession(ctx, record); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &IssuedSession{
		Token: token,
		Session: &Session{
			ID:        record.ID,
			UserID:    user.ID,
			User:      user,
			Kind:      kind,
			ExpiresAt: record.ExpiresAt,
		},
	}, nil
}

// Authenticate resolves a bearer token. Expired sessions are deleted on sight.
func (m *SessionManager) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	hash := m.digest(token)
	record, err := m.store.FindSessionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	if record.Expired(m.now()) {
		_ = m.store.DeleteSessionByHash(ctx, hash)
		return nil, ErrSessionExpired
	}
	if record.User == nil {
		return nil, ErrInvalidSession
	}

	return &Session{
		ID:        record.ID,
		UserID:    record.UserID,
		User:      record.User,
		Kind:      kindOf(record),
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.DeleteSessionByHash(ctx, m.digest(token))
}

func (m *SessionManager) RevokeDelegation(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.store.DeleteDelegationSessions(ctx, userID)
}

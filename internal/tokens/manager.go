// Package tokens hands out valid Google access tokens, refreshing stored
// grants shortly before they expire.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/provider"
	"github.com/hugh/tubelink/internal/store"
)

// BufferWindow is how long before its real expiry a token is treated as
// expired, so it cannot lapse during a downstream call.
const BufferWindow = 5 * time.Minute

// FallbackPolicy decides what a failed refresh returns.
type FallbackPolicy int

const (
	// FallbackStale returns the stored token after a failed refresh.
	FallbackStale FallbackPolicy = iota
	// FallbackFail surfaces the refresh error.
	FallbackFail
)

// RefreshError records a failed refresh attempt. Nothing is written when one
// occurs.
type RefreshError struct {
	UserID uuid.UUID
	Err    error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refreshing token for user %s: %v", e.UserID, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Result is the outcome of Resolve. An empty Token with a nil Err means the
// user has no linked Google account.
type Result struct {
	Token     string
	Refreshed bool
	Stale     bool
	Err       *RefreshError
}

func (r Result) Connected() bool {
	return r.Token != ""
}

type Manager struct {
	store     *store.Store
	refresher provider.Refresher
	policy    FallbackPolicy
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Manager)

func WithPolicy(p FallbackPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(s *store.Store, refresher provider.Refresher, opts ...Option) *Manager {
	m := &Manager{
		store:     s,
		refresher: refresher,
		policy:    FallbackStale,
		timeout:   30 * time.Second,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func isExpired(t *store.ProviderTokens, now time.Time) bool {
	if t.ExpiresAt == nil {
		return t.AccessToken == ""
	}
	return !now.Before(t.ExpiresAt.Add(-BufferWindow))
}

// Resolve returns a usable access token for the user, refreshing it when it
// is inside the buffer window. Only a store failure is returned as an error.
func (m *Manager) Resolve(ctx context.Context, userID uuid.UUID) (Result, error) {
	stored, err := m.store.GetProviderTokens(ctx, userID, models.ProviderGoogle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, nil
		}
		return Result{}, err
	}

	if !isExpired(stored, m.now()) {
		return Result{Token: stored.AccessToken}, nil
	}

	if stored.RefreshToken == "" {
		return Result{Token: stored.AccessToken, Stale: true}, nil
	}

	refreshCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	fresh, err := m.refresher.Refresh(refreshCtx, stored.RefreshToken)
	if err == nil && fresh.AccessToken == "" {
		err = errors.New("provider returned an empty access token")
	}
	if err != nil {
		rerr := &RefreshError{UserID: userID, Err: err}
		m.logger.Warn("token refresh failed",
			"user_id", userID,
			"error", err,
		)
		return Result{Token: stored.AccessToken, Stale: true, Err: rerr}, nil
	}

	if err := m.store.UpdateProviderTokens(ctx, userID, models.ProviderGoogle, fresh.AccessToken, fresh.Expiry, fresh.RefreshToken); err != nil {
		return Result{}, fmt.Errorf("persisting refreshed token: %w", err)
	}

	return Result{Token: fresh.AccessToken, Refreshed: true}, nil
}

// GetValidAccessToken applies the fallback policy to Resolve. An empty token
// with a nil error means the user is not connected.
func (m *Manager) GetValidAccessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	res, err := m.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	if res.Err != nil && m.policy == FallbackFail {
		return "", res.Err
	}

	return res.Token, nil
}

// Tokens returns the full stored grant after making sure the access token is
// fresh. Connection sync needs the refresh token too.
func (m *Manager) Tokens(ctx context.Context, userID uuid.UUID) (*store.ProviderTokens, error) {
	token, err := m.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	stored, err := m.store.GetProviderTokens(ctx, userID, models.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	stored.AccessToken = token
	return stored, nil
}

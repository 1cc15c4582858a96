// Package connection connects, disconnects and syncs a creator's YouTube
// account. Local state is authoritative: a failed downstream sync is logged
// and retried in the background, never rolled back.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/downstream"
	"github.com/hugh/tubelink/internal/provider"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/internal/tabsync"
)

var (
	ErrNotLinked = errors.New("no linked YouTube account")
)

// TokenSource returns the user's grant with a fresh access token, or nil
// when no Google account is linked.
type TokenSource interface {
	Tokens(ctx context.Context, userID uuid.UUID) (*store.ProviderTokens, error)
}

// RetryScheduler queues a background downstream sync.
type RetryScheduler interface {
	ScheduleSync(ctx context.Context, userID uuid.UUID) error
}

// Status is the externally visible connection state.
type Status struct {
	State       State   `json:"state"`
	ChannelID   *string `json:"channel_id,omitempty"`
	ChannelName *string `json:"channel_name,omitempty"`
}

// Result reports an operation. DownstreamSynced is false when the local
// change stands but the downstream has not caught up yet.
type Result struct {
	Status
	DownstreamSynced bool `json:"downstream_synced"`
}

type Deps struct {
	Store      *store.Store
	Tokens     TokenSource
	Channels   provider.ChannelFetcher
	Revoker    provider.Revoker
	Bridge     auth.TokenMinter
	Downstream downstream.Syncer
	Hub        *tabsync.Hub
	Retry      RetryScheduler
	Logger     *slog.Logger
}

type Service struct {
	Deps

	mu         sync.Mutex
	connecting map[uuid.UUID]int
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		Deps:       deps,
		connecting: make(map[uuid.UUID]int),
	}
}

func (s *Service) beginConnect(userID uuid.UUID) func() {
	s.mu.Lock()
	s.connecting[userID]++
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.connecting[userID] <= 1 {
			delete(s.connecting, userID)
			return
		}
		s.connecting[userID]--
	}
}

func (s *Service) isConnecting(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connecting[userID] > 0
}

func statusOf(user *models.User) Status {
	st := Status{State: Disconnected}
	if user.YouTubeConnected {
		st.State = Connected
		st.ChannelID = user.YouTubeChannelID
		st.ChannelName = user.YouTubeChannelName
	}
	return st
}

func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	if s.isConnecting(userID) {
		return &Status{State: Connecting}, nil
	}
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := statusOf(user)
	return &st, nil
}

// Connect marks the user connected after an OAuth grant and pushes the
// grant downstream. Calling it again reconnects.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID) (*Result, error) {
	done := s.beginConnect(userID)
	defer done()

	tokens, err := s.Tokens.Tokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving token: %w", err)
	}
	if tokens == nil {
		return nil, ErrNotLinked
	}

	var channelID, channelName *string
	if s.Channels != nil {
		ch, err := s.Channels.MineChannel(ctx, tokens.AccessToken)
		if err != nil {
			s.Logger.Warn("fetching channel metadata failed", "user_id", userID, "error", err)
		} else if ch != nil {
			channelID, channelName = nonEmpty(ch.ID), nonEmpty(ch.Title)
		}
	}

	if err := s.Store.SetConnection(ctx, userID, true, channelID, channelName); err != nil {
		return nil, fmt.Errorf("marking connected: %w", err)
	}

	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, user)

	synced := s.pushOrSchedule(ctx, user, tokens)
	return &Result{Status: statusOf(user), DownstreamSynced: synced}, nil
}

// Disconnect revokes the grant and unlinks it. The Google account row is
// only deleted when the user can still sign in with a password; otherwise
// its tokens are cleared so the user can sign in with Google again.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID) error {
	hasPassword, err := s.Store.HasAccount(ctx, userID, models.ProviderCredential)
	if err != nil {
		return err
	}

	stored, err := s.Store.GetProviderTokens(ctx, userID, models.ProviderGoogle)
	switch {
	case errors.Is(err, store.ErrNotFound):
		stored = nil
	case err != nil:
		return err
	}

	if stored != nil && s.Revoker != nil && stored.AccessToken != "" {
		if err := s.Revoker.Revoke(ctx, stored.AccessToken); err != nil {
			s.Logger.Info("token revoke failed", "user_id", userID, "error", err)
		}
	}

	if stored != nil {
		if hasPassword {
			err = s.Store.DeleteProviderAccount(ctx, userID, models.ProviderGoogle)
		} else {
			err = s.Store.ClearProviderTokens(ctx, userID, models.ProviderGoogle)
		}
		if err != nil {
			return fmt.Errorf("unlinking google account: %w", err)
		}
	}

	if err := s.Store.SetConnection(ctx, userID, false, nil, nil); err != nil {
		return fmt.Errorf("marking disconnected: %w", err)
	}

	s.Hub.Publish(ctx, userID, tabsync.State{Connected: false})
	return nil
}

// Sync pushes a fresh token downstream and adopts any channel metadata the
// downstream returns. Known metadata is never cleared.
func (s *Service) Sync(ctx context.Context, userID uuid.UUID) (*Result, error) {
	user, tokens, err := s.loadConnected(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tokens == nil {
		return &Result{Status: statusOf(user)}, nil
	}

	resp, err := s.push(ctx, user, tokens)
	if err != nil {
		s.Logger.Warn("downstream sync failed", "user_id", userID, "error", err)
		s.scheduleRetry(ctx, userID)
		return &Result{Status: statusOf(user)}, nil
	}

	user, err = s.adopt(ctx, user, resp)
	if err != nil {
		return nil, err
	}
	return &Result{Status: statusOf(user), DownstreamSynced: true}, nil
}

// PushDownstream is the background retry. Unlike Sync it returns the
// downstream error so the job is retried.
func (s *Service) PushDownstream(ctx context.Context, userID uuid.UUID) error {
	user, tokens, err := s.loadConnected(ctx, userID)
	if err != nil {
		return err
	}
	if tokens == nil {
		return nil
	}

	resp, err := s.push(ctx, user, tokens)
	if err != nil {
		return err
	}
	_, err = s.adopt(ctx, user, resp)
	return err
}

func (s *Service) loadConnected(ctx context.Context, userID uuid.UUID) (*models.User, *store.ProviderTokens, error) {
	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !user.YouTubeConnected {
		return user, nil, nil
	}

	tokens, err := s.Tokens.Tokens(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving token: %w", err)
	}
	return user, tokens, nil
}

func (s *Service) push(ctx context.Context, user *models.User, tokens *store.ProviderTokens) (*downstream.SyncResponse, error) {
	if s.Downstream == nil {
		return nil, downstream.ErrNotConfigured
	}

	bridgeToken, err := s.Bridge.Mint(user, auth.BridgeTTLSync)
	if err != nil {
		return nil, fmt.Errorf("minting bridge token: %w", err)
	}

	return s.Downstream.SyncTokens(ctx, bridgeToken, downstream.SyncRequest{
		Email:        user.Email,
		Name:         user.Name,
		Image:        user.Image,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ChannelID:    user.YouTubeChannelID,
		ChannelName:  user.YouTubeChannelName,
	})
}

func (s *Service) pushOrSchedule(ctx context.Context, user *models.User, tokens *store.ProviderTokens) bool {
	resp, err := s.push(ctx, user, tokens)
	if err != nil {
		s.Logger.Warn("downstream sync failed, local state kept", "user_id", user.ID, "error", err)
		s.scheduleRetry(ctx, user.ID)
		return false
	}
	if _, err := s.adopt(ctx, user, resp); err != nil {
		s.Logger.Warn("storing downstream metadata failed", "user_id", user.ID, "error", err)
	}
	return true
}

func (s *Service) scheduleRetry(ctx context.Context, userID uuid.UUID) {
	if s.Retry == nil {
		return
	}
	if err := s.Retry.ScheduleSync(ctx, userID); err != nil {
		s.Logger.Error("scheduling downstream sync retry failed", "user_id", userID, "error", err)
	}
}

// adopt stores channel metadata from the downstream when it differs from
// what is known. Absent values keep the stored ones.
func (s *Service) adopt(ctx context.Context, user *models.User, resp *downstream.SyncResponse) (*models.User, error) {
	if resp == nil {
		return user, nil
	}
	id := changed(user.YouTubeChannelID, nonEmptyPtr(resp.ChannelID))
	name := changed(user.YouTubeChannelName, nonEmptyPtr(resp.ChannelName))
	if id == nil && name == nil {
		return user, nil
	}

	if err := s.Store.SetConnection(ctx, user.ID, user.YouTubeConnected, id, name); err != nil {
		return nil, err
	}
	if id != nil {
		user.YouTubeChannelID = id
	}
	if name != nil {
		user.YouTubeChannelName = name
	}
	s.publish(ctx, user)
	return user, nil
}

func (s *Service) publish(ctx context.Context, user *models.User) {
	s.Hub.Publish(ctx, user.ID, tabsync.State{
		Connected:   user.YouTubeConnected,
		ChannelName: user.YouTubeChannelName,
	})
}

func nonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func nonEmptyPtr(v *string) *string {
	if v == nil {
		return nil
	}
	return nonEmpty(*v)
}

// changed returns next when it is set and differs from current.
func changed(current, next *string) *string {
	if next == nil {
		return nil
	}
	if current != nil && *current == *next {
		return nil
	}
	return next
}

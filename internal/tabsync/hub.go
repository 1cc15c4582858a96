package tabsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ServerOrigin marks messages published by the server rather than a tab.
const ServerOrigin = "server"

// Hub is the server side of the protocol: connection changes made by an API
// request are mirrored and fanned out to every tab of the user.
type Hub struct {
	channel Channel
	mirror  Mirror
	logger  *slog.Logger
}

func NewHub(channel Channel, mirror Mirror, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{channel: channel, mirror: mirror, logger: logger}
}

// Publish is best effort; failures are logged.
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, state State) {
	if h == nil {
		return
	}
	topic := Topic(userID)

	if h.mirror != nil {
		if err := h.mirror.Store(ctx, topic, state); err != nil {
			h.logger.Warn("tabsync mirror write failed", "user_id", userID, "error", err)
		}
	}
	if h.channel != nil {
		msg := Message{Origin: ServerOrigin, State: state, SentAt: time.Now()}
		if err := h.channel.Post(ctx, topic, msg); err != nil {
			h.logger.Warn("tabsync publish failed", "user_id", userID, "error", err)
		}
	}
}

// Snapshot returns the last mirrored state for the user.
func (h *Hub) Snapshot(ctx context.Context, userID uuid.UUID) (State, bool, error) {
	if h == nil || h.mirror == nil {
		return State{}, false, nil
	}
	return h.mirror.Load(ctx, Topic(userID))
}

// Subscribe streams the user's messages until ctx is done. Without a
// channel the stream is closed immediately.
func (h *Hub) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Message, error) {
	if h == nil || h.channel == nil {
		ch := make(chan Message)
		close(ch)
		return ch, nil
	}
	return h.channel.Subscribe(ctx, Topic(userID))
}

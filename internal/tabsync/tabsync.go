// Package tabsync keeps the connection state shown by every open tab of a
// user consistent. Tabs exchange messages over a broadcast Channel and keep
// a persisted Mirror of the last known state for cold starts.
package tabsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is what tabs agree on.
type State struct {
	Connected   bool    `json:"connected"`
	ChannelName *string `json:"channelName,omitempty"`
}

// Message is one broadcast. Origin identifies the sending tab so it can
// ignore its own posts.
type Message struct {
	Origin string    `json:"origin"`
	State  State     `json:"state"`
	SentAt time.Time `json:"sentAt"`
}

// Channel is a named broadcast medium. Every subscriber of a topic receives
// every message posted to it, including the poster's own.
type Channel interface {
	Post(ctx context.Context, topic string, msg Message) error
	// Subscribe delivers messages until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Close() error
}

// Mirror persists the last known state per topic.
type Mirror interface {
	Load(ctx context.Context, topic string) (State, bool, error)
	Store(ctx context.Context, topic string, state State) error
}

// Topic is the per-user channel and mirror key.
func Topic(userID uuid.UUID) string {
	return "tubelink:tabsync:" + userID.String()
}

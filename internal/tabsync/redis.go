package tabsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChannel fans messages out across server instances with Redis Pub/Sub.
type RedisChannel struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisChannel(client *redis.Client, logger *slog.Logger) *RedisChannel {
	return &RedisChannel{client: client, logger: logger}
}

func (c *RedisChannel) Post(ctx context.Context, topic string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal tabsync message: %w", err)
	}
	if err := c.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publish tabsync message: %w", err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	pubsub := c.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					c.logger.Warn("dropping malformed tabsync message", "topic", topic, "error", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the redis client is owned by the caller.
func (c *RedisChannel) Close() error {
	return nil
}

// RedisMirror stores the last known state as JSON under the topic key.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, ttl: ttl}
}

func (m *RedisMirror) key(topic string) string {
	return topic + ":mirror"
}

func (m *RedisMirror) Load(ctx context.Context, topic string) (State, bool, error) {
	data, err := m.client.Get(ctx, m.key(topic)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, false, fmt.Errorf("decode mirrored state: %w", err)
	}
	return s, true, nil
}

func (m *RedisMirror) Store(ctx context.Context, topic string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, m.key(topic), data, m.ttl).Err()
}

var (
	_ Channel = (*RedisChannel)(nil)
	_ Mirror  = (*RedisMirror)(nil)
)

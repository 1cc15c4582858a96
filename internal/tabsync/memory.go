package tabsync

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// MemoryChannel is an in-process broadcast channel.
type MemoryChannel struct {
	mu     sync.Mutex
	subs   map[string]map[chan Message]struct{}
	closed bool
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[string]map[chan Message]struct{})}
}

// Post never blocks; a subscriber whose buffer is full misses the message
// and recovers from the mirror.
func (c *MemoryChannel) Post(_ context.Context, topic string, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	for ch := range c.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (c *MemoryChannel) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	ch := make(chan Message, subscriberBuffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if c.subs[topic] == nil {
		c.subs[topic] = make(map[chan Message]struct{})
	}
	c.subs[topic][ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[topic][ch]; ok {
			delete(c.subs[topic], ch)
			close(ch)
		}
	}()

	return ch, nil
}

func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for topic, subs := range c.subs {
		for ch := range subs {
			close(ch)
		}
		delete(c.subs, topic)
	}
	return nil
}

type MemoryMirror struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{states: make(map[string]State)}
}

func (m *MemoryMirror) Load(_ context.Context, topic string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[topic]
	return s, ok, nil
}

func (m *MemoryMirror) Store(_ context.Context, topic string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[topic] = state
	return nil
}

var (
	_ Channel = (*MemoryChannel)(nil)
	_ Mirror  = (*MemoryMirror)(nil)
)

package tabsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StaleAfter is how long a tab may stay hidden before it revalidates on
// becoming visible again.
const StaleAfter = 30 * time.Second

// SessionRefresher reloads the tab's authenticated session so later calls
// see the state that was just received.
type SessionRefresher func(ctx context.Context) error

// Tab is one open page. A nil Channel or Mirror models a runtime without
// that facility; the matching operations become no-ops.
type Tab struct {
	id        string
	topic     string
	channel   Channel
	mirror    Mirror
	refresher SessionRefresher
	onChange  func(State)
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	state    State
	hiddenAt time.Time
	hidden   bool

	cancel context.CancelFunc
	done   chan struct{}
}

type TabOption func(*Tab)

func WithRefresher(r SessionRefresher) TabOption {
	return func(t *Tab) { t.refresher = r }
}

// WithOnChange is called after a received message has been applied.
func WithOnChange(fn func(State)) TabOption {
	return func(t *Tab) { t.onChange = fn }
}

func WithTabLogger(l *slog.Logger) TabOption {
	return func(t *Tab) { t.logger = l }
}

func WithTabClock(now func() time.Time) TabOption {
	return func(t *Tab) { t.now = now }
}

func NewTab(topic string, channel Channel, mirror Mirror, opts ...TabOption) *Tab {
	t := &Tab{
		id:      uuid.NewString(),
		topic:   topic,
		channel: channel,
		mirror:  mirror,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tab) ID() string {
	return t.id
}

func (t *Tab) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Open restores the mirrored state and starts listening.
func (t *Tab) Open(ctx context.Context) error {
	t.loadMirror(ctx)

	if t.channel == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	msgs, err := t.channel.Subscribe(ctx, t.topic)
	if err != nil {
		cancel()
		return err
	}

	t.cancel = cancel
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		for msg := range msgs {
			t.receive(ctx, msg)
		}
	}()
	return nil
}

func (t *Tab) Close() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
}

// Broadcast applies state locally, mirrors it and tells the other tabs. The
// tab does not process its own message.
func (t *Tab) Broadcast(ctx context.Context, state State) error {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	if t.mirror != nil {
		if err := t.mirror.Store(ctx, t.topic, state); err != nil {
			t.logger.Warn("tabsync mirror write failed", "topic", t.topic, "error", err)
		}
	}

	if t.channel == nil {
		return nil
	}
	return t.channel.Post(ctx, t.topic, Message{
		Origin: t.id,
		State:  state,
		SentAt: t.now(),
	})
}

func (t *Tab) receive(ctx context.Context, msg Message) {
	if msg.Origin == t.id {
		return
	}

	t.mu.Lock()
	t.state = msg.State
	t.mu.Unlock()

	if t.mirror != nil {
		if err := t.mirror.Store(ctx, t.topic, msg.State); err != nil {
			t.logger.Warn("tabsync mirror write failed", "topic", t.topic, "error", err)
		}
	}

	t.refreshSession(ctx)

	if t.onChange != nil {
		t.onChange(msg.State)
	}
}

// SetVisibility records visibility changes. A tab that becomes visible after
// being hidden longer than StaleAfter refreshes its session and reloads the
// mirror; it reports whether it did.
func (t *Tab) SetVisibility(ctx context.Context, hidden bool) bool {
	t.mu.Lock()
	if hidden {
		if !t.hidden {
			t.hidden = true
			t.hiddenAt = t.now()
		}
		t.mu.Unlock()
		return false
	}

	wasHidden := t.hidden
	hiddenFor := t.now().Sub(t.hiddenAt)
	t.hidden = false
	t.mu.Unlock()

	if !wasHidden || hiddenFor <= StaleAfter {
		return false
	}

	t.refreshSession(ctx)
	t.loadMirror(ctx)
	return true
}

func (t *Tab) refreshSession(ctx context.Context) {
	if t.refresher == nil {
		return
	}
	if err := t.refresher(ctx); err != nil {
		t.logger.Warn("session refresh failed", "topic", t.topic, "error", err)
	}
}

func (t *Tab) loadMirror(ctx context.Context) {
	if t.mirror == nil {
		return
	}
	state, ok, err := t.mirror.Load(ctx, t.topic)
	if err != nil {
		t.logger.Warn("tabsync mirror read failed", "topic", t.topic, "error", err)
		return
	}
	if !ok {
		return
	}
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

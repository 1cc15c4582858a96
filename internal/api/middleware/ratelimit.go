package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RateLimiter provides rate limiting functionality using a sliding window algorithm
type RateLimiter struct {
	requests int           // Maximum requests per window
	window   time.Duration // Window duration
	clients  map[string]*clientWindow
	mu       sync.RWMutex
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type clientWindow struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requests int, windowSeconds int) *RateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}

	rl := &RateLimiter{
		requests: requests,
		window:   time.Duration(windowSeconds) * time.Second,
		clients:  make(map[string]*clientWindow),
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go rl.cleanup(time.Minute)

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup removes idle clients periodically
func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		now := rl.now()
		for key, client := range rl.clients {
			client.mu.Lock()
			if len(client.timestamps) == 0 || now.Sub(client.timestamps[len(client.timestamps)-1]) > rl.window*2 {
				delete(rl.clients, key)
			}
			client.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// Allow checks if a request for the given key should be allowed
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.RLock()
	client, exists := rl.clients[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		// Double-check after acquiring write lock
		if client, exists = rl.clients[key]; !exists {
			client = &clientWindow{
				timestamps: make([]time.Time, 0, rl.requests),
			}
			rl.clients[key] = client
		}
		rl.mu.Unlock()
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)

	// Drop timestamps outside the window
	valid := len(client.timestamps)
	for i, ts := range client.timestamps {
		if ts.After(windowStart) {
			valid = i
			break
		}
	}
	client.timestamps = client.timestamps[valid:]

	remaining := rl.requests - len(client.timestamps)
	if remaining < 0 {
		remaining = 0
	}

	if len(client.timestamps) >= rl.requests {
		return false, remaining, client.timestamps[0].Add(rl.window)
	}

	client.timestamps = append(client.timestamps, now)
	return true, remaining - 1, now.Add(rl.window)
}

// Middleware applies the limiter to requests grouped by key.
func (rl *RateLimiter) Middleware(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, resetTime := rl.Allow(key(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(resetTime.Sub(rl.now()).Seconds())+1, 10))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit returns a middleware that applies rate limiting per client IP
func RateLimit(requests int, windowSeconds int) func(http.Handler) http.Handler {
	return NewRateLimiter(requests, windowSeconds).Middleware(getClientIP)
}

// RateLimitByUser limits per authenticated user, falling back to the client IP.
func RateLimitByUser(requests int, windowSeconds int) func(http.Handler) http.Handler {
	return NewRateLimiter(requests, windowSeconds).Middleware(func(r *http.Request) string {
		if userID := GetUserID(r.Context()); userID != uuid.Nil {
			return "user:" + userID.String()
		}
		return getClientIP(r)
	})
}

// ClientIP is the address recorded on sessions and audit entries.
func ClientIP(r *http.Request) string {
	return getClientIP(r)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For is set by proxies; the first entry is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

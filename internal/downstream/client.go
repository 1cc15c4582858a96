// Package downstream calls the automation service that acts on a creator's
// channel. Requests authenticate with a bridge token.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	ErrNotConfigured = errors.New("downstream service URL is not configured")
	ErrUnauthorized  = errors.New("downstream rejected the bridge token")
)

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream returned status %d: %s", e.StatusCode, e.Body)
}

// SyncRequest is the body of POST /auth/sync-tokens. The downstream upserts
// by user identity, so repeating a request is harmless.
type SyncRequest struct {
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Image        *string `json:"image"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token,omitempty"`
	ChannelID    *string `json:"channel_id"`
	ChannelName  *string `json:"channel_name"`
}

// SyncResponse carries whatever channel metadata the downstream knows.
type SyncResponse struct {
	ChannelID   *string `json:"channel_id,omitempty"`
	ChannelName *string `json:"channel_name,omitempty"`
}

// Syncer pushes tokens downstream.
type Syncer interface {
	SyncTokens(ctx context.Context, bridgeToken string, req SyncRequest) (*SyncResponse, error)
}

var _ Syncer = (*Client)(nil)

type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}
	// Keep the last response so status and body reach the caller.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    rc,
	}
}

func (c *Client) SyncTokens(ctx context.Context, bridgeToken string, body SyncRequest) (*SyncResponse, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/sync-tokens", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bridgeToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling downstream: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading downstream response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var out SyncResponse
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decoding downstream response: %w", err)
		}
	}
	return &out, nil
}

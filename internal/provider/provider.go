// Package provider talks to Google: OAuth2 code exchange and refresh, token
// revocation, the userinfo endpoint and the YouTube Data API.
package provider

import (
	"context"
	"time"
)

// Token is an OAuth2 grant. RefreshToken is empty when the provider did not
// issue a new one.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
}

// Channel is the caller's own YouTube channel.
type Channel struct {
	ID    string
	Title string
}

// Profile is the signed-in Google identity.
type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Revoker invalidates a token at the provider.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// ChannelFetcher loads channel metadata for an access token. A nil channel
// with a nil error means the account has no channel.
type ChannelFetcher interface {
	MineChannel(ctx context.Context, accessToken string) (*Channel, error)
}

// Authorizer drives the authorization-code flow.
type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	UserInfo(ctx context.Context, accessToken string) (*Profile, error)
}

// Compile-time interface satisfaction checks
var (
	_ Refresher      = (*Google)(nil)
	_ Revoker        = (*Google)(nil)
	_ ChannelFetcher = (*Google)(nil)
	_ Authorizer     = (*Google)(nil)
)

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

var ErrRevokeFailed = errors.New("token revocation failed")

// Config configures the Google client. The endpoint overrides are only set
// in tests.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	TokenURL    string
	AuthURL     string
	RevokeURL   string
	APIEndpoint string
}

type Google struct {
	oauth       *oauth2.Config
	httpClient  *http.Client
	revokeURL   string
	apiEndpoint string
}

func NewGoogle(cfg Config) *Google {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}

	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes: []string{
				"openid",
				oauth2api.UserinfoEmailScope,
				oauth2api.UserinfoProfileScope,
				youtube.YoutubeReadonlyScope,
				youtube.YoutubeForceSslScope,
			},
		},
		httpClient:  &http.Client{Timeout: timeout},
		revokeURL:   revokeURL,
		apiEndpoint: cfg.APIEndpoint,
	}
}

// oauthContext makes the oauth2 package use the bounded client.
func (g *Google) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

func fromOAuth(tok *oauth2.Token) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	return t
}

func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Google) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := g.oauth.Exchange(g.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}
	return fromOAuth(tok), nil
}

// Refresh runs the refresh_token grant.
func (g *Google) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	// A token without an access token is always refreshed.
	src := g.oauth.TokenSource(g.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	out := fromOAuth(tok)
	// oauth2 carries the old refresh token forward when none was issued.
	if out.RefreshToken == refreshToken {
		out.RefreshToken = ""
	}
	return out, nil
}

func (g *Google) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRevokeFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRevokeFailed, resp.StatusCode)
	}
	return nil
}

func (g *Google) clientOptions(ctx context.Context, accessToken string) []option.ClientOption {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(g.oauthContext(ctx), src)),
	}
	if g.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.apiEndpoint))
	}
	return opts
}

func (g *Google) MineChannel(ctx context.Context, accessToken string) (*Channel, error) {
	svc, err := youtube.NewService(ctx, g.clientOptions(ctx, accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("creating youtube client: %w", err)
	}

	resp, err := svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := resp.Items[0]
	ch := &Channel{ID: item.Id}
	if item.Snippet != nil {
		ch.Title = item.Snippet.Title
	}
	return ch, nil
}

func (g *Google) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	svc, err := oauth2api.NewService(ctx, g.clientOptions(ctx, accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("creating userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}

	profile := &Profile{
		Subject: info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}
	if info.VerifiedEmail != nil {
		profile.EmailVerified = *info.VerifiedEmail
	}
	return profile, nil
}

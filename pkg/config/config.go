package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Development-only defaults. Validate rejects them in production.
const (
	DefaultSessionSecret = "dev-session-secret-change-me"
	DefaultBridgeSecret  = "dev-bridge-secret-change-me"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Session    SessionConfig
	Bridge     BridgeConfig
	Google     GoogleConfig
	Downstream DownstreamConfig
	Encryption EncryptionConfig
	SMTP       SMTPConfig
	RateLimit  RateLimitConfig
	Jobs       JobsConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	PublicURL      string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

type SessionConfig struct {
	Secret             string
	TTLHours           int
	DelegationTTLHours int
	// RevokeDelegationOnRemove ends live delegation sessions when the
	// delegation password is removed.
	RevokeDelegationOnRemove bool
}

type BridgeConfig struct {
	Secret string
}

type GoogleConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	TimeoutSeconds int
}

type DownstreamConfig struct {
	URL            string
	TimeoutSeconds int
}

type EncryptionConfig struct {
	Key string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
	LoginRequests int
}

type JobsConfig struct {
	CleanupCron string
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s *SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

func (s *SessionConfig) DelegationTTL() time.Duration {
	return time.Duration(s.DelegationTTLHours) * time.Hour
}

func (g *GoogleConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func (d *DownstreamConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

func (s *SMTPConfig) Enabled() bool {
	return s.Host != ""
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func (s *ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

// InsecureDefaults lists the secrets still set to their development values.
func (c *Config) InsecureDefaults() []string {
	var names []string
	if c.Session.Secret == "" || c.Session.Secret == DefaultSessionSecret {
		names = append(names, "SESSION_SECRET")
	}
	if c.Bridge.Secret == "" || c.Bridge.Secret == DefaultBridgeSecret {
		names = append(names, "BRIDGE_SECRET")
	}
	if c.Encryption.Key == "" {
		names = append(names, "ENCRYPTION_KEY")
	}
	return names
}

// Validate fails when production runs with development secrets or without
// the provider and downstream settings.
func (c *Config) Validate() error {
	if !c.Server.IsProduction() {
		return nil
	}

	var errs []error
	for _, name := range c.InsecureDefaults() {
		errs = append(errs, fmt.Errorf("%s must be set in production", name))
	}
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set in production"))
	}
	if c.Downstream.URL == "" {
		errs = append(errs, errors.New("DOWNSTREAM_URL must be set in production"))
	}
	return errors.Join(errs...)
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_PUBLIC_URL", "http://localhost:8080")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "tubelink")
	v.SetDefault("DATABASE_PASSWORD", "tubelink_secret")
	v.SetDefault("DATABASE_NAME", "tubelink")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("SESSION_SECRET", DefaultSessionSecret)
	v.SetDefault("SESSION_TTL_HOURS", 24*7)
	v.SetDefault("DELEGATION_TTL_HOURS", 24)
	v.SetDefault("DELEGATION_REVOKE_ON_REMOVE", true)
	v.SetDefault("BRIDGE_SECRET", DefaultBridgeSecret)
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/auth/google/callback")
	v.SetDefault("PROVIDER_TIMEOUT_SECONDS", 30)
	v.SetDefault("DOWNSTREAM_URL", "http://localhost:8000")
	v.SetDefault("DOWNSTREAM_TIMEOUT_SECONDS", 30)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_FROM", "no-reply@tubelink.local")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_LOGIN_REQUESTS", 10)
	v.SetDefault("CLEANUP_CRON", "0 * * * *")

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			PublicURL:      v.GetString("SERVER_PUBLIC_URL"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		Session: SessionConfig{
			Secret:                   v.GetString("SESSION_SECRET"),
			TTLHours:                 v.GetInt("SESSION_TTL_HOURS"),
			DelegationTTLHours:       v.GetInt("DELEGATION_TTL_HOURS"),
			RevokeDelegationOnRemove: v.GetBool("DELEGATION_REVOKE_ON_REMOVE"),
		},
		Bridge: BridgeConfig{
			Secret: v.GetString("BRIDGE_SECRET"),
		},
		Google: GoogleConfig{
			ClientID:       v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURL:    v.GetString("GOOGLE_REDIRECT_URL"),
			TimeoutSeconds: v.GetInt("PROVIDER_TIMEOUT_SECONDS"),
		},
		Downstream: DownstreamConfig{
			URL:            strings.TrimRight(v.GetString("DOWNSTREAM_URL"), "/"),
			TimeoutSeconds: v.GetInt("DOWNSTREAM_TIMEOUT_SECONDS"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			LoginRequests: v.GetInt("RATE_LIMIT_LOGIN_REQUESTS"),
		},
		Jobs: JobsConfig{
			CleanupCron: v.GetString("CLEANUP_CRON"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/tubelink/internal/api/handlers"
	"github.com/hugh/tubelink/internal/api/middleware"
	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/provider"
	"github.com/hugh/tubelink/internal/tabsync"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Logger      *slog.Logger
	AuthService *auth.Service
	Bridge      auth.TokenMinter
	Google      provider.Authorizer
	Connections handlers.ConnectionService
	Hub         *tabsync.Hub

	SecureCookies  bool
	PostLoginURL   string   // where the Google callback lands
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	LoginRateLimit int      // Login attempts per IP per window
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	cookies := handlers.CookieOptions{Secure: cfg.SecureCookies}

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cookies, cfg.Logger)
	verificationHandler := handlers.NewVerificationHandler(cfg.AuthService, cfg.Logger)
	bridgeHandler := handlers.NewBridgeHandler(cfg.AuthService, cfg.Bridge)
	googleHandler := handlers.NewGoogleHandler(cfg.Google, cfg.AuthService, cfg.Connections, cookies, cfg.PostLoginURL, cfg.Logger)
	connectionHandler := handlers.NewConnectionHandler(cfg.Connections, cfg.Hub, cfg.Logger)

	loginLimit := cfg.LoginRateLimit
	if loginLimit <= 0 {
		loginLimit = 10
	}
	loginLimiter := middleware.RateLimit(loginLimit, cfg.RateLimitSecs)
	// Six digit codes are keyed per account so switching addresses does not reset the budget.
	codeLimiter := middleware.RateLimitByUser(loginLimit, cfg.RateLimitSecs)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.With(loginLimiter).Post("/auth/login", authHandler.Login)
		r.With(loginLimiter).Post("/auth/delegation/login", authHandler.DelegationLogin)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/google", googleHandler.Start)
		r.Get("/auth/google/callback", googleHandler.Callback)
		r.With(loginLimiter).Post("/auth/password-reset/request", verificationHandler.RequestPasswordReset)
		r.Post("/auth/password-reset/confirm", verificationHandler.ConfirmPasswordReset)

		// Any session, owner or delegated
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.AuthService.Sessions()))

			r.Get("/me", authHandler.Me)
			r.Get("/bridge/token", bridgeHandler.Token)

			r.Get("/connection", connectionHandler.Get)
			r.Get("/connection/events", connectionHandler.Events)
			r.Post("/connection/sync", connectionHandler.Sync)

			// Owner only
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOwner)

				r.Post("/auth/verify-email/request", verificationHandler.RequestEmail)
				r.With(codeLimiter).Post("/auth/verify-email/confirm", verificationHandler.ConfirmEmail)

				r.Put("/delegation/password", authHandler.SetDelegationPassword)
				r.Delete("/delegation/password", authHandler.RemoveDelegationPassword)

				r.Post("/connection/connect", connectionHandler.Connect)
				r.Post("/connection/disconnect", connectionHandler.Disconnect)
			})
		})
	})

	return &Router{r}
}

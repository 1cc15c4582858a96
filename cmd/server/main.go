package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/tubelink/internal/api"
	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/connection"
	"github.com/hugh/tubelink/internal/database"
	"github.com/hugh/tubelink/internal/downstream"
	"github.com/hugh/tubelink/internal/mail"
	"github.com/hugh/tubelink/internal/provider"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/internal/tabsync"
	"github.com/hugh/tubelink/internal/tasks"
	"github.com/hugh/tubelink/internal/tokens"
	"github.com/hugh/tubelink/pkg/config"
	"github.com/hugh/tubelink/pkg/crypto"
	"github.com/hugh/tubelink/pkg/queue"
	"github.com/hugh/tubelink/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// mirrorTTL bounds how long a tab snapshot outlives its last update.
const mirrorTTL = 24 * time.Hour

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting tubelink server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)
	for _, name := range cfg.InsecureDefaults() {
		logger.Warn("using development default", "setting", name)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Initialize encryptor for provider tokens at rest
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	st := store.New(db, encryptor)

	// Connect to Redis. Without it tab sync stays in-process and failed
	// downstream syncs are not retried.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	var (
		hub         *tabsync.Hub
		asynqClient *asynq.Client
		retry       connection.RetryScheduler
	)
	if redisClient != nil {
		hub = tabsync.NewHub(tabsync.NewRedisChannel(redisClient, logger), tabsync.NewRedisMirror(redisClient, mirrorTTL), logger)
		asynqClient = queue.NewClient(&cfg.Redis)
		retry = tasks.NewEnqueuer(asynqClient)
	} else {
		hub = tabsync.NewHub(tabsync.NewMemoryChannel(), tabsync.NewMemoryMirror(), logger)
	}

	// Initialize services
	sessions := auth.NewSessionManager(st, cfg.Session.Secret, cfg.Session.TTL(), cfg.Session.DelegationTTL())
	authService := auth.NewService(st, sessions, auth.Options{
		RevokeDelegationOnRemove: cfg.Session.RevokeDelegationOnRemove,
		Mailer:                   mail.New(cfg.SMTP, logger),
		Logger:                   logger,
	})
	bridge := auth.NewBridgeService(cfg.Bridge.Secret)

	google := provider.NewGoogle(provider.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Timeout:      cfg.Google.Timeout(),
	})
	tokenManager := tokens.NewManager(st, google,
		tokens.WithTimeout(cfg.Google.Timeout()),
		tokens.WithLogger(logger),
	)

	connections := connection.NewService(connection.Deps{
		Store:      st,
		Tokens:     tokenManager,
		Channels:   google,
		Revoker:    google,
		Bridge:     bridge,
		Downstream: downstream.NewClient(cfg.Downstream.URL, cfg.Downstream.Timeout(), logger),
		Hub:        hub,
		Retry:      retry,
		Logger:     logger,
	})

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		AuthService:    authService,
		Bridge:         bridge,
		Google:         google,
		Connections:    connections,
		Hub:            hub,
		SecureCookies:  cfg.Server.IsProduction(),
		PostLoginURL:   cfg.Server.PublicURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		LoginRateLimit: cfg.RateLimit.LoginRequests,
	})

	// Create HTTP server. No write timeout: the event stream is long lived.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}

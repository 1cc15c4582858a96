package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/connection"
	"github.com/hugh/tubelink/internal/database"
	"github.com/hugh/tubelink/internal/downstream"
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

	logger.Info("starting tubelink worker")

	if err := util.ValidateCronExpr(cfg.Jobs.CleanupCron); err != nil {
		logger.Error("invalid cleanup schedule", "cron", cfg.Jobs.CleanupCron, "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	st := store.New(db, encryptor)

	// Retries publish channel updates to open tabs through the shared Redis.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	defer redisClient.Close()
	hub := tabsync.NewHub(tabsync.NewRedisChannel(redisClient, logger), tabsync.NewRedisMirror(redisClient, 24*time.Hour), logger)

	google := provider.NewGoogle(provider.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Timeout:      cfg.Google.Timeout(),
	})

	// The job itself is retried by asynq, so no retry scheduler here.
	connections := connection.NewService(connection.Deps{
		Store:      st,
		Tokens:     tokens.NewManager(st, google, tokens.WithTimeout(cfg.Google.Timeout()), tokens.WithLogger(logger)),
		Channels:   google,
		Revoker:    google,
		Bridge:     auth.NewBridgeService(cfg.Bridge.Secret),
		Downstream: downstream.NewClient(cfg.Downstream.URL, cfg.Downstream.Timeout(), logger),
		Hub:        hub,
		Logger:     logger,
	})

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10)

	// Register handlers
	handler := tasks.NewHandler(st, connections, logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Periodic cleanup of expired sessions and verifications
	scheduler := queue.NewScheduler(&cfg.Redis)
	if _, err := scheduler.Register(cfg.Jobs.CleanupCron, tasks.NewCleanupTask(), asynq.Queue(queue.QueueMaintenance)); err != nil {
		logger.Error("failed to register cleanup job", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	next, _ := util.NextCronTime(cfg.Jobs.CleanupCron, time.Now())
	logger.Info("worker started, waiting for tasks...", "next_cleanup", next)

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}

//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/tubelink/internal/auth"
	"github.com/hugh/tubelink/internal/database"
	"github.com/hugh/tubelink/internal/store"
	"github.com/hugh/tubelink/pkg/config"
	"github.com/hugh/tubelink/pkg/crypto"
	"github.com/hugh/tubelink/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("failed to create encryptor: %v", err)
	}
	st := store.New(db, encryptor)
	sessions := auth.NewSessionManager(st, cfg.Session.Secret, cfg.Session.TTL(), cfg.Session.DelegationTTL())
	authService := auth.NewService(st, sessions, auth.Options{Logger: logger})

	email := os.Getenv("SEED_EMAIL")
	password := os.Getenv("SEED_PASSWORD")
	name := os.Getenv("SEED_NAME")
	delegation := os.Getenv("SEED_DELEGATION_PASSWORD")

	if email == "" {
		email = "creator@example.com"
	}
	if password == "" {
		password = "creator123!"
	}
	if name == "" {
		name = "Creator"
	}

	ctx := context.Background()
	resp, err := authService.Register(ctx, auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     name,
	}, auth.RequestMeta{UserAgent: "seed"})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("User already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create user: %v", err)
	}

	fmt.Printf("User created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Token: %s\n", resp.Token)

	if delegation != "" {
		if err := authService.SetDelegationPassword(ctx, resp.Session, delegation, "", auth.RequestMeta{UserAgent: "seed"}); err != nil {
			log.Fatalf("failed to set delegation password: %v", err)
		}
		fmt.Printf("Delegation access enabled\n")
	}
}

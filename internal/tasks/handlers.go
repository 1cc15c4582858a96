package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/tubelink/internal/store"
)

// DownstreamPusher re-sends a user's grant downstream.
type DownstreamPusher interface {
	PushDownstream(ctx context.Context, userID uuid.UUID) error
}

type Handler struct {
	store  *store.Store
	pusher DownstreamPusher
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(s *store.Store, pusher DownstreamPusher, logger *slog.Logger) *Handler {
	return &Handler{
		store:  s,
		pusher: pusher,
		logger: logger,
		now:    time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDownstreamSync, h.HandleDownstreamSync)
	mux.HandleFunc(TypeCleanup, h.HandleCleanup)
}

func (h *Handler) HandleDownstreamSync(ctx context.Context, t *asynq.Task) error {
	var payload DownstreamSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("missing user id: %w", asynq.SkipRetry)
	}

	h.logger.Info("retrying downstream sync", "user_id", payload.UserID)

	if err := h.pusher.PushDownstream(ctx, payload.UserID); err != nil {
		h.logger.Warn("downstream sync retry failed", "user_id", payload.UserID, "error", err)
		return err
	}

	h.logger.Info("downstream sync completed", "user_id", payload.UserID)
	return nil
}

func (h *Handler) HandleCleanup(ctx context.Context, t *asynq.Task) error {
	now := h.now()

	sessions, err := h.store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}

	verifications, err := h.store.DeleteExpiredVerifications(ctx, now)
	if err != nil {
		return fmt.Errorf("deleting expired verifications: %w", err)
	}

	h.logger.Info("cleanup completed",
		"sessions", sessions,
		"verifications", verifications,
	)
	return nil
}

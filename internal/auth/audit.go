package auth

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
	"github.com/hugh/tubelink/internal/store"
)

// Audit actions.
const (
	AuditRegister               = "register"
	AuditLogin                  = "login"
	AuditGoogleLogin            = "google_login"
	AuditDelegationLogin        = "delegation_login"
	AuditDelegationLoginFailed  = "delegation_login_failed"
	AuditDelegationPasswordSet  = "delegation_password_set"
	AuditDelegationPasswordDrop = "delegation_password_removed"
	AuditPasswordReset          = "password_reset"
	AuditEmailVerified          = "email_verified"
)

// AuditLogger writes append-only audit entries. Writes are best effort: a
// failure is logged and never returned.
type AuditLogger struct {
	store  *store.Store
	logger *slog.Logger
}

func NewAuditLogger(s *store.Store, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{store: s, logger: logger}
}

func (a *AuditLogger) Record(ctx context.Context, userID *uuid.UUID, action string, details map[string]interface{}, meta RequestMeta) {
	if a == nil {
		return
	}

	payload := "{}"
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}

	entry := &models.AuditLog{
		UserID:    userID,
		Action:    action,
		Details:   payload,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := a.store.CreateAuditLog(ctx, entry); err != nil {
		a.logger.Warn("audit log write failed", "action", action, "error", err)
	}
}

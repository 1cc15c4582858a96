package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/database/models"
)

func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) ListAuditLogs(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeDownstreamSync = "connection:downstream_sync"
	TypeCleanup        = "maintenance:cleanup"
)

// DownstreamSyncPayload identifies the user whose grant must be pushed to
// the downstream service again.
type DownstreamSyncPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

func NewDownstreamSyncTask(payload DownstreamSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDownstreamSync, data), nil
}

// CleanupPayload is empty - cleanup sweeps every expired record
type CleanupPayload struct{}

func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TypeCleanup, nil)
}

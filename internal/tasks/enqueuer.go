package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/tubelink/pkg/queue"
)

// SyncRetryDelay is how long a failed downstream sync waits before the
// background retry.
const SyncRetryDelay = 30 * time.Second

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules background jobs on the asynq client.
type Enqueuer struct {
	client taskEnqueuer
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// ScheduleSync queues one downstream sync per user; a retry that is already
// pending absorbs new requests.
func (e *Enqueuer) ScheduleSync(ctx context.Context, userID uuid.UUID) error {
	task, err := NewDownstreamSyncTask(DownstreamSyncPayload{UserID: userID})
	if err != nil {
		return err
	}

	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(queue.QueueSync),
		asynq.ProcessIn(SyncRetryDelay),
		asynq.MaxRetry(8),
		asynq.Timeout(time.Minute),
		asynq.TaskID("sync:"+userID.String()),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

package queue

import (
	"github.com/hibiken/asynq"
	"github.com/hugh/tubelink/pkg/config"
)

// Queue names. Downstream sync retries outrank housekeeping.
const (
	QueueSync        = "sync"
	QueueMaintenance = "maintenance"
)

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
}

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

func NewServer(cfg *config.RedisConfig, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}

	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueSync:        6,
				QueueMaintenance: 1,
			},
		},
	)
}

func NewScheduler(cfg *config.RedisConfig) *asynq.Scheduler {
	return asynq.NewScheduler(redisOpt(cfg), nil)
}

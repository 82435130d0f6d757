package tasks

import (
	"forum/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewQueue picks the Redis queue when a client is available, otherwise runs tasks inline.
func NewQueue(cfg *config.Config, rdb *redis.Client, mux *Mux) Queue {
	if rdb == nil || cfg.TaskInline {
		return NewInlineQueue(mux, cfg.TaskMaxRetries)
	}
	return NewRedisQueue(rdb, cfg.TaskQueueName, cfg.TaskMaxRetries, mux)
}

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"forum/internal/middleware"
	"forum/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultPollTimeout = 2 * time.Second
	errorBackoff       = time.Second
)

// DeadLetterKey is the list that receives tasks which exhausted their retries.
func DeadLetterKey(queue string) string {
	return queue + ":dead"
}

// RedisQueue is an at-least-once queue on a Redis list: LPUSH to enqueue, BRPOP to consume.
type RedisQueue struct {
	rdb         *redis.Client
	name        string
	maxRetries  int
	mux         *Mux
	pollTimeout time.Duration

	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewRedisQueue(rdb *redis.Client, name string, maxRetries int, mux *Mux) *RedisQueue {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RedisQueue{
		rdb:         rdb,
		name:        name,
		maxRetries:  maxRetries,
		mux:         mux,
		pollTimeout: defaultPollTimeout,
	}
}

// Name returns the Redis list key.
func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) Enqueue(ctx context.Context, t *Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.name, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Type, err)
	}
	observability.TasksEnqueued.WithLabelValues(t.Type).Inc()
	return nil
}

// Start launches workers consumers. Only the first call has an effect.
func (q *RedisQueue) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	q.startOnce.Do(func() {
		for i := 0; i < workers; i++ {
			q.wg.Add(1)
			go func(id int) {
				defer q.wg.Done()
				q.workerLoop(ctx, id)
			}(i)
		}
		middleware.Logger.Info("task workers started",
			slog.String("queue", q.name),
			slog.Int("workers", workers),
		)
	})
}

// Wait blocks until every worker has returned after its context was cancelled.
func (q *RedisQueue) Wait() {
	q.wg.Wait()
}

func (q *RedisQueue) workerLoop(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := q.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			middleware.Logger.Error("task queue poll failed",
				slog.String("queue", q.name),
				slog.Int("worker", id),
				slog.String("error", err.Error()),
			)
			if !sleepContext(ctx, errorBackoff) {
				return
			}
		}
	}
}

// RunOnce waits up to the poll timeout for one task and processes it.
// It reports whether a task was taken off the queue.
func (q *RedisQueue) RunOnce(ctx context.Context) (bool, error) {
	res, err := q.rdb.BRPop(ctx, q.pollTimeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	q.handle(ctx, []byte(res[1]))
	return true, nil
}

func (q *RedisQueue) handle(ctx context.Context, raw []byte) {
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		middleware.Logger.Error("dropping malformed task", slog.String("queue", q.name), slog.String("error", err.Error()))
		q.bury(ctx, raw, "malformed")
		return
	}

	spanCtx, span := observability.StartSpan(ctx, "task."+t.Type,
		attribute.String("task.id", t.ID),
		attribute.Int("task.attempts", t.Attempts),
	)
	err := q.mux.Process(spanCtx, &t)
	observability.EndSpan(span, err)
	if err == nil {
		observability.TasksProcessed.WithLabelValues(t.Type, "ok").Inc()
		return
	}

	t.Attempts++
	log := middleware.Logger.With(
		slog.String("task_id", t.ID),
		slog.String("task_type", t.Type),
		slog.Int("attempts", t.Attempts),
		slog.String("error", err.Error()),
	)
	next, _ := json.Marshal(&t)
	if errors.Is(err, ErrUnknownTask) || t.Attempts > q.maxRetries {
		log.Error("task failed permanently")
		q.bury(ctx, next, t.Type)
		return
	}
	log.Warn("task failed, requeueing")
	observability.TasksProcessed.WithLabelValues(t.Type, "retry").Inc()
	if perr := q.rdb.LPush(ctx, q.name, next).Err(); perr != nil {
		log.Error("requeue failed", slog.String("requeue_error", perr.Error()))
	}
}

func (q *RedisQueue) bury(ctx context.Context, raw []byte, taskType string) {
	observability.TasksProcessed.WithLabelValues(taskType, "dead").Inc()
	if err := q.rdb.LPush(ctx, DeadLetterKey(q.name), raw).Err(); err != nil {
		middleware.Logger.Error("dead-letter push failed", slog.String("queue", q.name), slog.String("error", err.Error()))
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

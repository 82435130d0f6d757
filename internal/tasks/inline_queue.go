package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"forum/internal/middleware"
	"forum/internal/observability"
)

// InlineQueue runs tasks in a goroutine of the enqueuing process. Used when Redis is unavailable.
type InlineQueue struct {
	mux        *Mux
	maxRetries int
	wg         sync.WaitGroup
}

func NewInlineQueue(mux *Mux, maxRetries int) *InlineQueue {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &InlineQueue{mux: mux, maxRetries: maxRetries}
}

func (q *InlineQueue) Enqueue(ctx context.Context, t *Task) error {
	observability.TasksEnqueued.WithLabelValues(t.Type).Inc()
	// The request context is cancelled once the response is written.
	bg := context.WithoutCancel(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(bg, t)
	}()
	return nil
}

func (q *InlineQueue) run(ctx context.Context, t *Task) {
	for {
		err := q.mux.Process(ctx, t)
		if err == nil {
			observability.TasksProcessed.WithLabelValues(t.Type, "ok").Inc()
			return
		}
		t.Attempts++
		if errors.Is(err, ErrUnknownTask) || t.Attempts > q.maxRetries {
			observability.TasksProcessed.WithLabelValues(t.Type, "dead").Inc()
			middleware.Logger.ErrorContext(ctx, "inline task failed permanently",
				slog.String("task_id", t.ID),
				slog.String("task_type", t.Type),
				slog.String("error", err.Error()),
			)
			return
		}
		observability.TasksProcessed.WithLabelValues(t.Type, "retry").Inc()
	}
}

// Wait blocks until every enqueued task has finished.
func (q *InlineQueue) Wait() {
	q.wg.Wait()
}

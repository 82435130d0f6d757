package notifications

import (
	"context"
	"log/slog"

	"forum/internal/mailer"
	"forum/internal/middleware"
	"forum/internal/service"
	"forum/internal/tasks"
)

// TaskSendEmail delivers a rendered mailer.Message.
const TaskSendEmail = "email:send"

// Dispatcher reacts to account events by enqueueing email.
type Dispatcher struct {
	queue       tasks.Queue
	frontendURL string
}

func NewDispatcher(queue tasks.Queue, frontendURL string) *Dispatcher {
	return &Dispatcher{queue: queue, frontendURL: frontendURL}
}

// Publish implements service.EventPublisher.
func (d *Dispatcher) Publish(ctx context.Context, event service.Event) error {
	switch e := event.(type) {
	case service.PasswordResetRequested:
		return d.passwordReset(ctx, e)
	case *service.PasswordResetRequested:
		return d.passwordReset(ctx, *e)
	default:
		middleware.Logger.DebugContext(ctx, "no dispatcher route for event", slog.String("event", event.EventName()))
		return nil
	}
}

func (d *Dispatcher) passwordReset(ctx context.Context, e service.PasswordResetRequested) error {
	msg, err := mailer.RenderPasswordReset(mailer.PasswordReset{
		FirstName: e.FirstName,
		Email:     e.Email,
		ResetURL:  mailer.ResetURL(d.frontendURL, e.Token),
	})
	if err != nil {
		return err
	}
	task, err := tasks.NewTask(TaskSendEmail, msg)
	if err != nil {
		return err
	}
	return d.queue.Enqueue(ctx, task)
}

// RegisterHandlers wires the email task to sender.
func RegisterHandlers(mux *tasks.Mux, sender mailer.Sender) {
	mux.Handle(TaskSendEmail, func(ctx context.Context, t *tasks.Task) error {
		var msg mailer.Message
		if err := t.Decode(&msg); err != nil {
			return err
		}
		return sender.Send(ctx, msg)
	})
}

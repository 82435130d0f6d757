package service

import "context"

// Event names.
const (
	EventPasswordResetRequested = "password_reset_requested"
)

// Event is a domain event emitted by a service after its own work is committed.
type Event interface {
	EventName() string
}

// PasswordResetRequested is emitted when a reset key was issued for an active user.
type PasswordResetRequested struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	Token     string `json:"token"`
}

func (PasswordResetRequested) EventName() string { return EventPasswordResetRequested }

// EventPublisher delivers events to whoever reacts to them (mail, realtime).
// Publish errors are reported to the caller, which decides whether they matter.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventPublisherFunc adapts a function to EventPublisher.
type EventPublisherFunc func(ctx context.Context, event Event) error

func (f EventPublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

package server

import (
	"context"
	"log/slog"

	"forum/internal/middleware"
	"forum/internal/notifications"
)

// publishUserEvent delivers an event to every connection of userID. Failures are logged only.
func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	// The request context ends with the response; publication must not.
	ctx = context.WithoutCancel(ctx)
	event := notifications.RealtimeEvent{Type: eventType, Payload: payload}
	if err := s.notifier.PublishUser(ctx, userID, event); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish user event",
			slog.String("event", eventType),
			slog.Uint64("target_user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}

// publishBroadcastEvent delivers an event to every connected client. Failures are logged only.
func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	event := notifications.RealtimeEvent{Type: eventType, Payload: payload}
	if err := s.notifier.PublishBroadcast(ctx, event); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish broadcast event",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}

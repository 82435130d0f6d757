package server

import (
	"log/slog"

	"forum/internal/middleware"
	"forum/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler handles GET /ws/
// @Summary Realtime forum events
// @Description Upgrades to a WebSocket that streams discussion and comment events. Browsers may pass the access token as ?token=.
// @Tags realtime
// @Security BearerAuth
// @Param token query string false "Access token"
// @Success 101
// @Failure 401 {object} models.ErrorResponse
// @Failure 426 {object} models.ErrorResponse
// @Router /ws/ [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration refused",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","payload":{"detail":"`+err.Error()+`"}}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		hello, err := notifications.RealtimeEvent{
			Type:    notifications.EventConnected,
			Payload: map[string]interface{}{"user_id": uid},
		}.Encode()
		if err == nil {
			client.TrySend([]byte(hello))
		}

		go client.WritePump()
		client.ReadPump()
	})
}

package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"forum/internal/middleware"
	"forum/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
	ErrHubClosed  = errors.New("hub is shutting down")
)

type clientSet map[*Client]struct{}

// Hub fans realtime events out to the websocket clients of each user.
// Anonymous readers are grouped under user id 0 and only receive broadcasts.
type Hub struct {
	mu     sync.RWMutex
	users  map[uint]clientSet
	total  int
	closed bool
}

func NewHub() *Hub {
	return &Hub{users: make(map[uint]clientSet)}
}

func (h *Hub) Name() string { return "forum" }

func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return nil, ErrHubClosed
	case h.total >= maxTotalConns:
		return nil, ErrServerFull
	case len(h.users[userID]) >= maxConnsPerUser:
		return nil, ErrUserFull
	}

	set := h.users[userID]
	if set == nil {
		set = make(clientSet)
		h.users[userID] = set
	}
	c := NewClient(h, conn, userID)
	set[c] = struct{}{}
	h.total++
	observability.ActiveWebSockets.Inc()
	return c, nil
}

// UnregisterClient is idempotent; the read pump and the handler both call it.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.users[c.UserID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.users, c.UserID)
	}
	h.total--
	observability.ActiveWebSockets.Dec()
	c.closeSend()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

func (h *Hub) SendUser(userID uint, message string) {
	data := []byte(message)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		c.TrySend(data)
	}
}

func (h *Hub) BroadcastAll(message string) {
	data := []byte(message)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.users {
		for c := range set {
			c.TrySend(data)
		}
	}
}

// StartWiring subscribes to the notifier's Redis channels and delivers what arrives.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx, h.route)
}

func (h *Hub) route(channel, payload string) {
	if channel == broadcastChannel {
		h.BroadcastAll(payload)
		return
	}
	if userID, ok := parseUserChannel(channel); ok {
		h.SendUser(userID, payload)
		return
	}
	middleware.Logger.Warn("dropping message on unknown realtime channel", slog.String("channel", channel))
}

// Shutdown refuses new clients and closes every send queue, so each write pump
// sends a close frame and exits.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for _, set := range h.users {
		for c := range set {
			c.closeSend()
		}
	}
	observability.ActiveWebSockets.Sub(float64(h.total))
	h.users = make(map[uint]clientSet)
	h.total = 0
	return nil
}

// Package notifications fans forum events out to websocket clients and turns
// account events into outbound email tasks.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"forum/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix    = "forum:events:"
	broadcastChannel = channelPrefix + "broadcast"
	userChannelNS    = channelPrefix + "user:"
)

// Realtime event types.
const (
	EventConnected         = "connected"
	EventDiscussionCreated = "discussion_created"
	EventDiscussionLiked   = "discussion_liked"
	EventCommentUpserted   = "comment_upserted"
	EventCommentDeleted    = "comment_deleted"
)

// RealtimeEvent is the JSON frame written to websocket clients.
type RealtimeEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Encode returns the wire form of e.
func (e RealtimeEvent) Encode() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return string(raw), nil
}

// Notifier publishes realtime events on Redis pub/sub. Without Redis, messages
// go straight to the in-process subscriber so a single instance still works.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(channel, payload string)
}

// NewNotifier creates a Notifier; rdb may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UserChannel derives the channel name for a user.
func UserChannel(userID uint) string {
	return userChannelNS + strconv.FormatUint(uint64(userID), 10)
}

// BroadcastChannel is the channel delivered to every connected client.
func BroadcastChannel() string {
	return broadcastChannel
}

// PublishBroadcast sends e to every connected client.
func (n *Notifier) PublishBroadcast(ctx context.Context, e RealtimeEvent) error {
	return n.publish(ctx, broadcastChannel, e)
}

// PublishUser sends e to every connection of userID.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, e RealtimeEvent) error {
	return n.publish(ctx, UserChannel(userID), e)
}

func (n *Notifier) publish(ctx context.Context, channel string, e RealtimeEvent) error {
	payload, err := e.Encode()
	if err != nil {
		return err
	}
	if n.rdb != nil {
		return n.rdb.Publish(ctx, channel, payload).Err()
	}
	n.mu.RLock()
	local := n.local
	n.mu.RUnlock()
	if local != nil {
		deliver(local, channel, payload)
	}
	return nil
}

// StartSubscriber calls onMessage for every broadcast and per-user message until ctx is done.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		n.mu.Lock()
		n.local = onMessage
		n.mu.Unlock()
		go func() {
			<-ctx.Done()
			n.mu.Lock()
			n.local = nil
			n.mu.Unlock()
		}()
		return nil
	}

	sub := n.rdb.PSubscribe(ctx, broadcastChannel, userChannelNS+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe realtime events: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				deliver(onMessage, msg.Channel, msg.Payload)
			}
		}
	}()
	return nil
}

func deliver(onMessage func(channel, payload string), channel, payload string) {
	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.Error("panic in realtime subscriber",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	onMessage(channel, payload)
}

// parseUserChannel extracts the user id from a per-user channel name.
func parseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelNS)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

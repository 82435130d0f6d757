package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterLimits(t *testing.T) {
	hub := NewHub()
	var clients []*Client
	for i := 0; i < maxConnsPerUser; i++ {
		c, err := hub.Register(5, nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}
	_, err := hub.Register(5, nil)
	assert.ErrorIs(t, err, ErrUserFull)
	assert.Equal(t, maxConnsPerUser, hub.Count())

	hub.UnregisterClient(clients[0])
	hub.UnregisterClient(clients[0])
	assert.Equal(t, maxConnsPerUser-1, hub.Count())

	_, err = hub.Register(5, nil)
	assert.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	_, err = hub.Register(6, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.Zero(t, hub.Count())
}

func TestHub_RoutesUserAndBroadcastMessages(t *testing.T) {
	hub := NewHub()
	alice, err := hub.Register(1, nil)
	require.NoError(t, err)
	bob, err := hub.Register(2, nil)
	require.NoError(t, err)
	anon, err := hub.Register(0, nil)
	require.NoError(t, err)

	hub.route(UserChannel(1), "for-alice")
	hub.route(broadcastChannel, "for-all")
	hub.route("forum:events:user:nope", "dropped")

	assert.Equal(t, "for-alice", string(<-alice.Send))
	assert.Equal(t, "for-all", string(<-alice.Send))
	assert.Equal(t, "for-all", string(<-bob.Send))
	assert.Equal(t, "for-all", string(<-anon.Send))
	assert.Empty(t, bob.Send)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)

	// Sending after the queue is closed must not panic.
	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestHub_WiringThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	c, err := hub.Register(9, nil)
	require.NoError(t, err)
	require.NoError(t, n.PublishUser(context.Background(), 9, RealtimeEvent{Type: EventCommentUpserted}))

	select {
	case msg := <-c.Send:
		assert.JSONEq(t, `{"type":"comment_upserted","payload":null}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("message not routed")
	}
	_ = hub.Shutdown(context.Background())
}

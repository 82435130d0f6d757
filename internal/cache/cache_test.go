package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()
	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			*dest = cachedThing{ID: 7, Name: "general"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, DiscussionKey(7), &first, DiscussionTTL, fetch(&first)))
	var second cachedThing
	require.NoError(t, Aside(ctx, DiscussionKey(7), &second, DiscussionTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("forum:discussion:7"))

	mr.FastForward(DiscussionTTL + time.Second)
	var third cachedThing
	require.NoError(t, Aside(ctx, DiscussionKey(7), &third, DiscussionTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := useMiniredis(t)
	boom := errors.New("boom")

	var dest cachedThing
	err := Aside(context.Background(), DiscussionKey(1), &dest, DiscussionTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(DiscussionKey(1)))
}

func TestAside_WithoutClientAlwaysFetches(t *testing.T) {
	SetClient(nil)
	calls := 0
	var dest cachedThing
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), DiscussionKey(2), &dest, DiscussionTTL, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_RedisDownFallsBackToFetch(t *testing.T) {
	mr := useMiniredis(t)
	mr.Close()

	var dest cachedThing
	err := Aside(context.Background(), DiscussionKey(3), &dest, DiscussionTTL, func() error {
		dest.Name = "fresh"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", dest.Name)
}

func TestInvalidate(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, DiscussionKey(4), cachedThing{ID: 4}, DiscussionTTL))
	require.NoError(t, SetJSON(ctx, DiscussionKey(5), cachedThing{ID: 5}, DiscussionTTL))

	InvalidateDiscussion(ctx, 4)
	Invalidate(ctx)

	assert.False(t, mr.Exists(DiscussionKey(4)))
	assert.True(t, mr.Exists(DiscussionKey(5)))
}

func TestNewClient_ParsesURL(t *testing.T) {
	rdb, err := NewClient("redis://localhost:6390/2")
	require.NoError(t, err)
	defer rdb.Close()
	assert.Equal(t, "localhost:6390", rdb.Options().Addr)
	assert.Equal(t, 2, rdb.Options().DB)

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}

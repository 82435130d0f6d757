// Package cache holds the shared Redis client and small read-through helpers over it.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"forum/internal/middleware"
	"forum/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// errorCounter feeds failed commands into the redis_errors_total metric. Misses are not failures.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countFailure(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countFailure("pipeline", err)
		return err
	}
}

func countFailure(op string, err error) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	observability.RedisErrors.WithLabelValues(op).Inc()
}

// NewClient accepts a bare host:port or a redis:// URL.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(errorCounter{})
	return rdb, nil
}

// InitRedis installs the shared client if addr answers a PING. Otherwise the client stays nil
// and the API runs without cache, rate limits or the task queue.
func InitRedis(addr string) {
	client = nil
	rdb, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("redis url invalid, running without redis",
			slog.String("addr", addr), slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("redis unreachable, running without redis",
			slog.String("addr", addr), slog.String("error", err.Error()))
		_ = rdb.Close()
		return
	}

	middleware.Logger.Info("redis connected", slog.String("addr", addr))
	client = rdb
}

func GetClient() *redis.Client { return client }

// SetClient swaps the shared client; tests install miniredis through it.
func SetClient(rdb *redis.Client) { client = rdb }

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what a limited route does when Redis cannot be reached.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	FailClosed
)

var errNoLimiterStore = errors.New("rate limit store not configured")

// limitsDisabled is true outside deployed environments so local runs and tests are never throttled.
func limitsDisabled() bool {
	env := os.Getenv("APP_ENV")
	return env == "" || env == "test" || env == "development"
}

// CheckRateLimit records one hit for id against resource and reports whether it is within limit
// for the current fixed window.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if limitsDisabled() {
		return true, nil
	}
	hits, _, err := hit(ctx, rdb, "rl:"+resource+":"+id, window)
	if err != nil {
		return false, err
	}
	return hits <= int64(limit), nil
}

// hit increments key and starts its window on the first hit. It returns the hit count and
// the time left in the window.
func hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	if rdb == nil {
		return 0, 0, errNoLimiterStore
	}
	hits, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if hits == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return hits, window, nil
	}
	ttl, err := rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return hits, ttl, nil
}

// clientKey identifies the caller by user id once authenticated, else by remote address.
func clientKey(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
		return "user:" + strconv.FormatUint(uint64(uid), 10)
	}
	return "ip:" + c.IP()
}

// RateLimit allows limit requests per window for each client on the named route.
// Without a name the request path is used. Redis failures let the request through.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limitsDisabled() {
			return c.Next()
		}
		resource := c.Path()
		if len(name) > 0 && name[0] != "" {
			resource = name[0]
		}

		ctx := c.UserContext()
		hits, ttl, err := hit(ctx, rdb, "rl:"+resource+":"+clientKey(c), window)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limiter unavailable, rejecting request",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"detail": "Rate limit unavailable"})
		}

		if hits > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Round(time.Second)/time.Second)))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"detail": "Request was throttled."})
		}
		return c.Next()
	}
}

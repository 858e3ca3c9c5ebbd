package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mariocelzo/biblioflow/internal/config"
)

// CounterStore counts requests per key within a fixed window. The
// limiter treats it as a capability: single-instance deployments use
// the in-process map, multi-instance deployments share a Redis counter
// so all instances see one window.
type CounterStore interface {
	// Incr increments the counter for key, setting its expiry to ttl
	// when the key is new, and returns the post-increment count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// MemoryCounterStore is an in-process CounterStore.
type MemoryCounterStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
}

// NewMemoryCounterStore returns an empty in-process counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
	}
}

// Incr implements CounterStore. Expired keys are dropped lazily on the
// next touch, so the maps stay bounded by the set of live windows.
func (s *MemoryCounterStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if exp, ok := s.expires[key]; ok && now.After(exp) {
		delete(s.counts, key)
		delete(s.expires, key)
	}
	if _, ok := s.counts[key]; !ok {
		s.expires[key] = now.Add(ttl)
	}
	s.counts[key]++
	return s.counts[key], nil
}

// RedisCounterStore is a CounterStore shared across instances.
type RedisCounterStore struct {
	rdb *redis.Client
}

// NewRedisCounterStore wraps a Redis client as a CounterStore.
func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

// Incr implements CounterStore with INCR plus a one-time EXPIRE.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// RateLimit returns a fixed-window limiter over the given store. The
// window is identified by truncating the clock to cfg.Window and baked
// into the counter key, so counters from a previous window simply age
// out. A store failure lets the request through; limiting is a shield,
// not a gate the whole API depends on.
func RateLimit(cfg config.RateLimitConfig, store CounterStore) echo.MiddlewareFunc {
	if !cfg.Enabled || store == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			windowStart := now.Truncate(cfg.Window)
			key := fmt.Sprintf("%s:%d", buildRateKey(cfg, c), windowStart.Unix())

			count, err := store.Incr(c.Request().Context(), key, cfg.Window)
			if err != nil {
				c.Logger().Warnf("ratelimit: counter store error for key=%s: %v", key, err)
				return next(c)
			}

			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Limit) {
				retryAfter := int(windowStart.Add(cfg.Window).Sub(now).Seconds()) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": retryAfter,
				})
			}
			return next(c)
		}
	}
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := "anon"
	if id := CurrentUserID(c); id != 0 {
		uid = strconv.FormatUint(id, 10)
	}
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}

package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and consumes a token atomically. Bucket state is
// a Redis hash per key so limits are shared across server instances.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_per_sec = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

local elapsed = math.max(0, now_ms - last_refill)
tokens = math.min(capacity, tokens + (elapsed / 1000.0) * refill_per_sec)

local allowed = 0
local retry_after_ms = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    retry_after_ms = math.ceil(((1 - tokens) / refill_per_sec) * 1000)
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', now_ms)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, math.floor(tokens), retry_after_ms }
`)

// RedisRateLimit returns a distributed token-bucket rate limiter backed by
// Redis. When rdb is nil it returns nil so the caller can fall back to the
// in-memory RateLimit middleware.
func RedisRateLimit(rdb *redis.Client, cfg RateLimitConfig) echo.MiddlewareFunc {
	if rdb == nil {
		return nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ratelimit:" + c.RealIP()
			if tid, ok := c.Get("tenant_id").(string); ok && tid != "" {
				key = "ratelimit:" + tid + ":" + c.RealIP()
			}

			ctx := c.Request().Context()
			vals, err := tokenBucketScript.Run(ctx, rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.BurstSize,
				cfg.RequestsPerSecond,
				60,
			).Int64Slice()
			if err != nil || len(vals) != 3 {
				// Redis trouble must not take the API down.
				return next(c)
			}

			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.BurstSize))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}

package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient connects to Redis for rate limiting and availability
// response caching. Redis is optional: when addr is empty or the server is
// unreachable the function returns nil and callers degrade to in-process
// behavior.
func NewRedisClient(addr, password string, db int, logger zerolog.Logger) *redis.Client {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", addr).Msg("redis unavailable, falling back to in-memory rate limiting and no response cache")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", addr).Msg("redis connected")
	return client
}

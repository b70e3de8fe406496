package middleware

import (
	"context"
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacheStore is a CacheStore backed by Redis, so cached availability
// listings are shared across server instances. Keys are hashed to keep them
// short and to avoid leaking query contents into Redis key listings.
type RedisCacheStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCacheStore creates a RedisCacheStore. The prefix namespaces all
// entries (e.g. "slotcache").
func NewRedisCacheStore(client *redis.Client, prefix string) *RedisCacheStore {
	return &RedisCacheStore{client: client, prefix: prefix}
}

func (s *RedisCacheStore) redisKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("%s:%x", s.prefix, sum[:])
}

// Get retrieves a cached response. Redis errors are treated as misses.
func (s *RedisCacheStore) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores a response with the given TTL. Errors are ignored; the cache is
// best effort.
func (s *RedisCacheStore) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_ = s.client.Set(ctx, s.redisKey(key), value, ttl).Err()
}

// Delete removes a single entry.
func (s *RedisCacheStore) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_ = s.client.Del(ctx, s.redisKey(key)).Err()
}

// Clear removes all entries under the prefix.
func (s *RedisCacheStore) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	iter := s.client.Scan(ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		_ = s.client.Del(ctx, iter.Val()).Err()
	}
}

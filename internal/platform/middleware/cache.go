package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// CacheStore is the backend for cached GET responses. Implementations must be
// safe for concurrent use.
type CacheStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
	Clear()
}

type memoryEntry struct {
	body      []byte
	expiresAt time.Time
}

// MemoryCacheStore caches responses in process memory. It backs the slot
// cache when Redis is not configured, so single-instance deployments still
// get cached availability listings.
type MemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryCacheStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.Delete(key)
		return nil, false
	}
	return entry.body, true
}

func (s *MemoryCacheStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = memoryEntry{body: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

func (s *MemoryCacheStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *MemoryCacheStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
}

// Janitor evicts expired entries every interval until ctx is cancelled.
// Without it, keys that are never read again would outlive their TTL.
func (s *MemoryCacheStore) Janitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now()
				s.mu.Lock()
				for k, e := range s.entries {
					if now.After(e.expiresAt) {
						delete(s.entries, k)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}

// captureWriter buffers the response body and status so the middleware can
// decide what to store and send after the handler returns.
type captureWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func capture(w http.ResponseWriter) *captureWriter {
	return &captureWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *captureWriter) Write(b []byte) (int, error) { return w.body.Write(b) }

func (w *captureWriter) WriteHeader(code int) { w.status = code }

func (w *captureWriter) release() error {
	w.ResponseWriter.WriteHeader(w.status)
	if w.body.Len() == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}

// responseKey scopes cache entries to the tenant plus the full request URL,
// so listings for different businesses, dates, and staff never collide.
func responseKey(tenant, path, query string) string {
	return tenant + ":" + path + "?" + query
}

// weakETag derives a weak validator from the response body.
func weakETag(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf(`W/"%x"`, sum[:16])
}

// etagMatches reports whether an If-None-Match value accepts the given ETag.
// Handles comma-separated candidates, the "*" wildcard, and weak comparison.
func etagMatches(headerValue, etag string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "*" {
		return true
	}
	bare := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(headerValue, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == bare {
			return true
		}
	}
	return false
}

// ResponseCacheMiddleware caches successful GET responses in store for ttl.
// Responses carry a weak ETag, and If-None-Match revalidations are answered
// with 304 without re-running the handler on a cache hit. Mount it only on
// routes whose responses are safe to share within a tenant.
func ResponseCacheMiddleware(store CacheStore, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}

			tenant, _ := c.Get("tenant_id").(string)
			key := responseKey(tenant, req.URL.Path, req.URL.RawQuery)
			res := c.Response()

			if body, ok := store.Get(key); ok {
				etag := weakETag(body)
				res.Header().Set("ETag", etag)
				res.Header().Set("X-Cache", "HIT")
				if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatches(inm, etag) {
					return c.NoContent(http.StatusNotModified)
				}
				res.Writer.WriteHeader(http.StatusOK)
				_, err := res.Writer.Write(body)
				return err
			}

			orig := res.Writer
			buf := capture(orig)
			res.Writer = buf

			if err := next(c); err != nil {
				res.Writer = orig
				return err
			}
			res.Writer = orig

			if buf.status < 400 {
				body := buf.body.Bytes()
				store.Set(key, body, ttl)
				res.Header().Set("ETag", weakETag(body))
			}
			res.Header().Set("X-Cache", "MISS")
			return buf.release()
		}
	}
}

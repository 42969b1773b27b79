package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NikitaDmitryuk/media-download-server/internal/logutils"
)

const (
	pruneThreshold = 1024
	bucketIdleTTL  = time.Hour
)

// tokenBucketLimiter enforces a per-client request budget. Each client gets
// limit tokens; one token is spent per request and tokens refill at a steady
// rate up to the limit.
type tokenBucketLimiter struct {
	buckets    map[string]*bucket
	limit      int
	refillRate time.Duration
	mu         sync.RWMutex
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
}

// newTokenBucketLimiter allows perMinute requests per client sustained, with
// bursts up to the same amount.
func newTokenBucketLimiter(perMinute int) *tokenBucketLimiter {
	return &tokenBucketLimiter{
		buckets:    make(map[string]*bucket),
		limit:      perMinute,
		refillRate: time.Minute / time.Duration(perMinute),
	}
}

// allow spends one token for the client if any is available.
func (l *tokenBucketLimiter) allow(client string) bool {
	l.mu.RLock()
	b, exists := l.buckets[client]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		// Check again under the write lock.
		if b, exists = l.buckets[client]; !exists {
			if len(l.buckets) >= pruneThreshold {
				l.prune()
			}
			b = &bucket{
				tokens:     l.limit,
				lastRefill: time.Now(),
			}
			l.buckets[client] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Sub(b.lastRefill) >= l.refillRate {
		refill := int(now.Sub(b.lastRefill) / l.refillRate)
		b.tokens = min(l.limit, b.tokens+refill)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// prune drops buckets idle long enough to be fully refilled anyway.
// Caller holds the write lock.
func (l *tokenBucketLimiter) prune() {
	now := time.Now()
	for client, b := range l.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastRefill) > bucketIdleTTL
		b.mu.Unlock()
		if idle {
			delete(l.buckets, client)
		}
	}
}

// rateLimit rejects clients that exceed the configured request budget.
func rateLimit(limiter *tokenBucketLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		if !limiter.allow(client) {
			logutils.Log.WithFields(map[string]any{
				"request_id": c.GetString(requestIDKey),
				"client":     client,
				"path":       c.Request.URL.Path,
			}).Warn("API request rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter keeps one token bucket per acting profile, or per client IP for
// requests without a profile.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
	now   func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns nil when rps is zero, which disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		byKey: make(map[string]*limiterEntry),
		now:   time.Now,
	}
}

func (l *RateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.byKey[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-limiterIdleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(rateLimitKey(c)) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "TOO_MANY_REQUESTS"})
			return
		}
		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if profile, ok := MustProfile(c); ok {
		return "profile:" + strconv.FormatInt(profile.ID, 10)
	}
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

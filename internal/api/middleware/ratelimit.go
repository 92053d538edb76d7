package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/config"
)

const limiterIdleTTL = 30 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterMiddleware keeps one token bucket per client IP. Idle buckets
// are swept during normal traffic, at most once per limiterIdleTTL.
type RateLimiterMiddleware struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	rate      rate.Limit
	burst     int
	now       func() time.Time
}

func NewRateLimiterMiddleware(cfg *config.Config) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
		rate:      rate.Limit(cfg.RateLimitRefillRate),
		burst:     cfg.RateLimitBucketSize,
		now:       time.Now,
	}
}

func (rm *RateLimiterMiddleware) allow(client string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	now := rm.now()
	if now.Sub(rm.lastSweep) > limiterIdleTTL {
		for id, b := range rm.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(rm.buckets, id)
			}
		}
		rm.lastSweep = now
	}

	b, ok := rm.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rm.rate, rm.burst)}
		rm.buckets[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Limit rejects requests beyond the client's bucket with 429.
func (rm *RateLimiterMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.ClientIP()
		if !rm.allow(client) {
			log.Printf("Rate limit exceeded for %s on %s %s", client, c.Request.Method, c.FullPath())
			Abort(c, apperr.New(http.StatusTooManyRequests, "Too many requests, please slow down", nil))
			return
		}
		c.Next()
	}
}

// Size reports how many client buckets are tracked.
func (rm *RateLimiterMiddleware) Size() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.buckets)
}

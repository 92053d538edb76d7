package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agrolink/api/internal/config"
)

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	clock := time.Now()
	rm := NewRateLimiterMiddleware(&config.Config{RateLimitRefillRate: 1, RateLimitBucketSize: 1})
	rm.now = func() time.Time { return clock }

	assert.True(t, rm.allow("10.0.0.1"))
	assert.True(t, rm.allow("10.0.0.2"))
	assert.Equal(t, 2, rm.Size())

	clock = clock.Add(limiterIdleTTL + time.Minute)
	assert.True(t, rm.allow("10.0.0.3"))
	assert.Equal(t, 1, rm.Size(), "idle buckets are dropped")
}

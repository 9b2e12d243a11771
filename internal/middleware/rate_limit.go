package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/yourorg/photo-onboarding/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// idleBucketTTL is how long a full, unused bucket is kept before pruning
const idleBucketTTL = 10 * time.Minute

// RateLimiter implements a token bucket per client
type RateLimiter struct {
	tokensPerSec float64
	burst        float64
	buckets      map[string]*tokenBucket
	now          func() time.Time
	mu           sync.Mutex
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		tokensPerSec: float64(requestsPerMinute) / 60.0,
		burst:        float64(burst),
		buckets:      make(map[string]*tokenBucket),
		now:          time.Now,
	}
}

// Allow takes one token from key's bucket if one is available
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	bucket, exists := r.buckets[key]
	if !exists {
		bucket = &tokenBucket{tokens: r.burst, lastRefill: now}
		r.buckets[key] = bucket
		r.prune(now)
	}

	elapsed := now.Sub(bucket.lastRefill).Seconds()
	bucket.lastRefill = now
	bucket.tokens = min(bucket.tokens+elapsed*r.tokensPerSec, r.burst)

	if bucket.tokens >= 1.0 {
		bucket.tokens--
		return true
	}
	return false
}

// prune drops buckets idle long enough to have refilled. Called with mu held.
func (r *RateLimiter) prune(now time.Time) {
	for key, b := range r.buckets {
		if now.Sub(b.lastRefill) > idleBucketTTL {
			delete(r.buckets, key)
		}
	}
}

// RateLimit creates middleware limiting requests per client IP. Rejections
// carry the widget's response shape so the client can show the reason.
func RateLimit(limiter *RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.Allow(clientIP) {
			logger.Warn("Rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.CommitResponse{
				Reason: "Слишком много запросов, попробуйте позже.",
			})
			return
		}
		c.Next()
	}
}

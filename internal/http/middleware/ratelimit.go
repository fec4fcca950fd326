// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-caller token bucket. Each authenticated
// username (or, before BasicAuth has run, the client IP) owns one bucket;
// idle buckets are swept every sweepEvery lookups. Replays flagged by
// IdempotencyValidator are not charged.
//
// The limiter is process-local; every instance enforces its own budget.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Rate-limit response headers.
const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
)

// KeyFunc maps a request to its bucket. Keys carry a "user:" or "ip:"
// prefix so the two namespaces never collide.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys on the username stored by BasicAuth, falling back to
// the client IP.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if u := userIDFromCtx(c); u != "" {
			return "user:" + u
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc

	idleTTL    time.Duration
	sweepEvery int
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
}

// NewRateLimiter allows rps requests per second per key with the given
// burst. A burst below 1 is raised to 1.
func NewRateLimiter(rps float64, burst int, key KeyFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		key:        key,
		idleTTL:    10 * time.Minute,
		sweepEvery: 5000,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

// limiter returns the bucket for key, creating it on first use. The sweep
// runs before the lookup so a stale bucket is replaced, not refreshed.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.sweepEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.seen = now
		return b.lim
	}
	b := &bucket{lim: rate.NewLimiter(rl.limit, rl.burst), seen: now}
	rl.buckets[key] = b
	return b.lim
}

// IsRateBypass reports whether IdempotencyValidator exempted this request.
func IsRateBypass(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyRateBypass)
	b, _ := v.(bool)
	return b
}

// Handler charges one token per request. When the bucket is empty it
// aborts with a 429 ErrorDetail and a Retry-After of the whole seconds
// until the next token.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.key(c)
		lim := rl.limiter(key)
		now := rl.now()
		c.Header(HeaderRateLimit, strconv.Itoa(rl.burst))

		res := lim.ReserveN(now, 1)
		if res.OK() && res.DelayFrom(now) == 0 {
			c.Header(HeaderRateRemaining, strconv.Itoa(int(math.Max(0, lim.TokensAt(now)))))
			c.Next()
			return
		}

		retry := 1
		if res.OK() {
			retry = int(math.Ceil(res.DelayFrom(now).Seconds()))
			res.CancelAt(now)
		}
		scope, _, _ := strings.Cut(key, ":")
		rateLimited.WithLabelValues(scope).Inc()

		c.Header(HeaderRateRemaining, "0")
		c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
		AbortWithDetail(c, NewErrorDetail(c, http.StatusTooManyRequests,
			"Too Many Requests", "rate limit exceeded", "too_many_requests"))
	}
}

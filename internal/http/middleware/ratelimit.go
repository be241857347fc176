// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the token-bucket limiter in front of the storefront
// API. Buckets are keyed by shopping session (client IP when the client sent
// none) and live in process memory; each replica limits on its own.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const defaultBucketIdleTTL = 10 * time.Minute

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by route.",
	},
	[]string{"route"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// KeyFunc maps a request to the identity whose bucket it draws from.
type KeyFunc func(*gin.Context) string

// KeyBySessionOrIP keys by the shopping session the client sent. Requests
// that sent none, including those Session issued a fresh id to, are keyed by
// client IP: a new id per request would otherwise get a new bucket each time.
// Keys are namespaced ("session:abc", "ip:203.0.113.7").
func KeyBySessionOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if s := SessionFrom(c); s != GuestSession && !SessionIssued(c) {
			return "session:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64 // tokens per second
	Burst int     // bucket size; values <= 0 become 1
	Key   KeyFunc // defaults to KeyBySessionOrIP

	// Exempt lists request paths that are never limited: health probes,
	// scrapes and the long-lived cart event stream, whose reconnects would
	// otherwise eat the session's budget.
	Exempt []string

	// IdleTTL evicts buckets unused for this long. Defaults to 10 minutes.
	IdleTTL time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Safe for concurrent use.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	key     KeyFunc
	exempt  map[string]struct{}
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter builds a limiter from opts.
func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(opts.RPS),
		burst:   max(opts.Burst, 1),
		key:     opts.Key,
		exempt:  toSet(opts.Exempt),
		idleTTL: opts.IdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if rl.key == nil {
		rl.key = KeyBySessionOrIP()
	}
	if rl.idleTTL <= 0 {
		rl.idleTTL = defaultBucketIdleTTL
	}
	rl.lastSweep = rl.now()
	return rl
}

// limiter returns the bucket for key, creating it on first use. At most once
// per idle TTL it sweeps buckets that have not been touched for that long.
func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay, which the limiter lets through without spending a token.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limits. A rejected request gets 429 with the
// standard error envelope and a Retry-After telling the client when its
// next token is due (whole seconds, at least 1).
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.exempt[c.Request.URL.Path]; ok || IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		key := rl.key(c)
		res := rl.limiter(key, now).ReserveN(now, 1)
		if res.OK() {
			delay := res.DelayFrom(now)
			if delay == 0 {
				c.Next()
				return
			}
			res.CancelAt(now)
			rl.reject(c, key, delay)
			return
		}
		rl.reject(c, key, time.Second)
	}
}

func (rl *RateLimiter) reject(c *gin.Context, key string, wait time.Duration) {
	rateLimited.WithLabelValues(routeLabel(c)).Inc()

	retry := max(int(math.Ceil(min(wait, time.Hour).Seconds())), 1)
	LoggerFrom(c).Warn().Str("bucket", key).Int("retry_after_s", retry).Msg("rate limited")

	c.Header("Retry-After", strconv.Itoa(retry))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "rate_limited",
		"message":    "rate limit exceeded",
	})
}

package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than the cleanup TTL are dropped.
type RateLimiter struct {
	limiters   *xsync.Map[string, *limiterEntry]
	rate       rate.Limit
	burst      int
	cleanupTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter allows perMinute requests per IP per minute, all of which may
// arrive in a burst
func NewRateLimiter(perMinute int, cleanupTTL time.Duration, logger *zap.Logger) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	rl := &RateLimiter{
		limiters:   xsync.NewMap[string, *limiterEntry](),
		rate:       rate.Every(time.Minute / time.Duration(perMinute)),
		burst:      perMinute,
		cleanupTTL: cleanupTTL,
		logger:     logger,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go rl.autoCleanup()
	return rl
}

func (rl *RateLimiter) autoCleanup() {
	ticker := time.NewTicker(rl.cleanupTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Cleanup removes limiters not used within the cleanup TTL
func (rl *RateLimiter) Cleanup() {
	cutoff := rl.now().Add(-rl.cleanupTTL)
	rl.limiters.Range(func(ip string, _ *limiterEntry) bool {
		rl.limiters.Compute(ip, func(old *limiterEntry, loaded bool) (*limiterEntry, xsync.ComputeOp) {
			if loaded && old.lastAccess.Before(cutoff) {
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		return true
	})
}

// Allow reports whether ip may issue another request
func (rl *RateLimiter) Allow(ip string) bool {
	now := rl.now()
	entry, _ := rl.limiters.Compute(ip, func(old *limiterEntry, loaded bool) (*limiterEntry, xsync.ComputeOp) {
		if !loaded {
			old = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		}
		old.lastAccess = now
		return old, xsync.UpdateOp
	})
	return entry.limiter.AllowN(now, 1)
}

// LimiterCount returns the number of tracked IPs
func (rl *RateLimiter) LimiterCount() int {
	return rl.limiters.Size()
}

// Middleware rejects requests over the limit with 429 rate_limited
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			rl.logger.Warn("rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			retry := int(math.Ceil(1 / float64(rl.rate)))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr, which chi's RealIP has already
// rewritten from X-Forwarded-For or X-Real-IP when present
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

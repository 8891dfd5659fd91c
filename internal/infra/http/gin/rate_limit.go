package ginserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	gin "github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than idleTTL are dropped on the next sweep.
type RateLimiter struct {
	perMinute int
	burst     int
	logger    *slog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	swept    time.Time
}

type clientLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

const idleTTL = 10 * time.Minute

func NewRateLimiter(perMinute int, logger *slog.Logger) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	burst := perMinute / 4
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{perMinute: perMinute, burst: burst, logger: logger, limiters: make(map[string]*clientLimiter)}
}

func (r *RateLimiter) limiterFor(ip string, now time.Time) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.swept) > idleTTL {
		for key, l := range r.limiters {
			if now.Sub(l.seen) > idleTTL {
				delete(r.limiters, key)
			}
		}
		r.swept = now
	}
	l, ok := r.limiters[ip]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMinute)), r.burst)}
		r.limiters[ip] = l
	}
	l.seen = now
	return l.limiter
}

func (r *RateLimiter) Handle(c *gin.Context) {
	ip := c.ClientIP()
	if !r.limiterFor(ip, time.Now()).Allow() {
		if r.logger != nil {
			r.logger.Warn("rate limit exceeded", "ip", ip)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
		return
	}
	c.Next()
}

package core

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 15 * time.Minute

// LoginRateLimiter throttles login attempts per client IP.
type LoginRateLimiter struct {
	clock clockwork.Clock
	limit rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginRateLimiter allows perMinute attempts per IP with the given burst.
func NewLoginRateLimiter(clock clockwork.Clock, perMinute float64, burst int) *LoginRateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if burst <= 0 {
		burst = 1
	}
	return &LoginRateLimiter{
		clock:     clock,
		limit:     rate.Limit(perMinute / 60),
		burst:     burst,
		limiters:  make(map[string]*limiterEntry),
		lastSweep: clock.Now(),
	}
}

// Allow consumes one attempt for key. When the attempt is refused it returns
// how long the caller should wait.
func (l *LoginRateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > rateLimiterExpiry {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > rateLimiterExpiry {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now

	if e.limiter.AllowN(now, 1) {
		return true, 0
	}
	r := e.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

// Middleware rejects throttled requests with 429 and a Retry-After header.
func (l *LoginRateLimiter) Middleware(views *Views) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.Allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}
		authAttempts.WithLabelValues("login", "throttled").Inc()
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		views.Form(c, "login.tmpl", http.StatusTooManyRequests, "Too many login attempts. Please try again later.", gin.H{"Username": c.PostForm("username")})
		c.Abort()
	}
}

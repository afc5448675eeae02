package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle client keeps its limiter before the
// bookkeeping entry is dropped.
const visitorTTL = 5 * time.Minute

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter budgets requestsPerMinute for each client IP. Burst is
// a tenth of the budget so an idle client cannot bank a full minute of
// requests and replay them at once. A zero or negative budget disables
// limiting.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
}

// Handler returns the gin middleware enforcing the budget. A nil
// receiver is a pass-through.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !r.limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) limiterFor(ip string) *rate.Limiter {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.visitors[ip]; ok {
		v.lastSeen = now
		return v.limiter
	}

	// Sweep idle entries whenever a new client shows up. Login traffic
	// churns IPs; this keeps the map from growing without bound.
	for addr, v := range r.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(r.visitors, addr)
		}
	}

	v := &visitor{limiter: rate.NewLimiter(r.limit, r.burst), lastSeen: now}
	r.visitors[ip] = v
	return v.limiter
}

// Package ratelimit provides a per-client token bucket middleware.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/healthcard/healthcard-api/pkg/config"
)

// staleAfter is how long an idle client's bucket is kept
const staleAfter = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per client IP
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
}

// New creates a limiter from rate limit configuration
func New(cfg *config.RateLimitConfig) *Limiter {
	l := &Limiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   cfg.BurstSize,
	}
	go l.cleanup()
	return l
}

// Middleware rejects clients that exceed their bucket with 429
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[ip]
	if !ok {
		entry = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		for ip, entry := range l.clients {
			if time.Since(entry.lastSeen) > staleAfter {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}

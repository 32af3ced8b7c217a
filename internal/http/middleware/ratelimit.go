// README: Per-client rate limiting and a global in-flight request cap.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/easonlin404/limit"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// RateLimit allows each client IP max requests per window, refilled evenly.
// Clients idle for a whole window are forgotten.
func RateLimit(max int, window time.Duration) gin.HandlerFunc {
	if max <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	every := rate.Every(window / time.Duration(max))

	var mu sync.Mutex
	limiters := expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, window)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		l, ok := limiters.Get(ip)
		if !ok {
			l = rate.NewLimiter(every, max)
		}
		limiters.Add(ip, l)
		mu.Unlock()

		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

// MaxInFlight caps concurrently served requests. Long-lived WebSocket
// connections must not pass through it.
func MaxInFlight(n int) gin.HandlerFunc {
	if n <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return limit.Limit(n)
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"oneworld-backend/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter is one client's token bucket plus its last-seen time for
// cleanup.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns a per-client-IP token bucket middleware for the API
// group. Limits come from the environment (requests per second and burst);
// RATE_LIMIT_ENABLED=false disables it entirely.
func RateLimit() gin.HandlerFunc {
	enabled := config.GetEnv("RATE_LIMIT_ENABLED", "true") == "true"
	perSecond := config.GetEnvInt("RATE_LIMIT_RPS", 20)
	burst := config.GetEnvInt("RATE_LIMIT_BURST", 40)

	var (
		mu       sync.Mutex
		limiters = make(map[string]*clientLimiter)
	)

	// Drop buckets idle for more than ten minutes.
	go func() {
		for range time.Tick(time.Minute) {
			mu.Lock()
			for ip, cl := range limiters {
				if time.Since(cl.lastSeen) > 10*time.Minute {
					delete(limiters, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		ip := c.ClientIP()
		mu.Lock()
		cl, ok := limiters[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
			limiters[ip] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if !cl.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiterConfig struct {
	RequestsPerSecond int
	Burst             int
	CleanupInterval   time.Duration
	TTL               time.Duration
}

// visitors tracks one token bucket per client IP
type visitors struct {
	mu    sync.Mutex
	m     map[string]*visitor
	rps   int
	burst int
}

func (v *visitors) get(ip string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	vis, exists := v.m[ip]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(v.rps), v.burst)
		v.m[ip] = &visitor{limiter, time.Now()}
		return limiter
	}

	vis.lastSeen = time.Now()
	return vis.limiter
}

func (v *visitors) cleanup(ttl, interval time.Duration) {
	for {
		time.Sleep(interval)

		v.mu.Lock()
		for ip, vis := range v.m {
			if time.Since(vis.lastSeen) > ttl {
				delete(v.m, ip)
			}
		}
		v.mu.Unlock()
	}
}

func RateLimiterMiddleware(config RateLimiterConfig) gin.HandlerFunc {
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Minute
	}
	if config.TTL == 0 {
		config.TTL = 3 * time.Minute
	}

	v := &visitors{
		m:     make(map[string]*visitor),
		rps:   config.RequestsPerSecond,
		burst: config.Burst,
	}

	go v.cleanup(config.TTL, config.CleanupInterval)

	return func(c *gin.Context) {
		if !v.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":     "Too many requests",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Next()
	}
}

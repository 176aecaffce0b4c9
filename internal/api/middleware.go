package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter holds one client's rate limiter and its last-seen time,
// so idle clients can be evicted instead of accumulating forever.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CORS returns middleware answering the configured origins, methods
// and headers, defaulting to permissive values when a list is empty.
func CORS(origins, methods, headers []string) gin.HandlerFunc {
	origin := "*"
	if len(origins) > 0 {
		origin = strings.Join(origins, ", ")
	}
	allowMethods := "GET, POST, PUT, DELETE, OPTIONS"
	if len(methods) > 0 {
		allowMethods = strings.Join(methods, ", ")
	}
	allowHeaders := "Content-Type, Authorization"
	if len(headers) > 0 {
		allowHeaders = strings.Join(headers, ", ")
	}

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", allowMethods)
		c.Header("Access-Control-Allow-Headers", allowHeaders)
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// RequestSizeLimit caps the body of any mutating request at maxBytes.
func RequestSizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// PerClientRateLimit throttles each client IP independently, evicting
// limiters idle for more than ten minutes via a background goroutine
// stopped by closing cleanupStop.
func PerClientRateLimit(limiters *sync.Map, cleanupStop chan struct{}, cleanupInit *sync.Once, rps, burst int) gin.HandlerFunc {
	cleanupInit.Do(func() {
		go cleanupIdleLimiters(limiters, cleanupStop)
	})

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		entry, _ := limiters.LoadOrStore(clientIP, &clientLimiter{
			limiter:  rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), burst),
			lastSeen: time.Now(),
		})
		cl := entry.(*clientLimiter)
		cl.lastSeen = time.Now()

		if !cl.limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func cleanupIdleLimiters(limiters *sync.Map, stop chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			limiters.Range(func(key, value any) bool {
				if now.Sub(value.(*clientLimiter).lastSeen) > 10*time.Minute {
					limiters.Delete(key)
				}
				return true
			})
		case <-stop:
			return
		}
	}
}

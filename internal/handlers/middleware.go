package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger records one structured line and one metrics sample per request.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	elapsed := time.Since(start)
	h.opts.Metrics.ObserveRequest(route, status, elapsed)

	// the websocket stream logs its own lifecycle
	if route == "/ws" || route == "/metrics" || route == "/health" {
		return
	}
	h.log.Debugw("http_request",
		"method", c.Request.Method,
		"route", route,
		"status", status,
		"duration", elapsed,
		"client_ip", c.ClientIP(),
	)
}

// rateLimit throttles state-changing routes with a shared token bucket.
func (h *Handler) rateLimit(c *gin.Context) {
	if h.limiter == nil || h.limiter.Allow() {
		c.Next()
		return
	}
	c.Header("Retry-After", "1")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": errRateLimited,
	})
}

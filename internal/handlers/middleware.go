package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger writes one line per request. Health checks and metrics scrapes are
// logged at debug level to keep the journal readable.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	if h.log == nil {
		return
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	fields := []interface{}{
		"method", c.Request.Method,
		"path", path,
		"status", c.Writer.Status(),
		"latency", time.Since(start),
		"client_ip", c.ClientIP(),
	}
	switch {
	case path == "/health" || path == "/metrics":
		h.log.Debugw("http_request", fields...)
	case c.Writer.Status() >= 500:
		h.log.Errorw("http_request", fields...)
	default:
		h.log.Infow("http_request", fields...)
	}
}

package middleware

import (
	"time"

	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		// Socket.IO long-polling would drown everything else at info.
		if c.FullPath() == "" || statusCode >= 500 {
			logger.Debugf("[%s] %s - %d (%v)", c.Request.Method, path, statusCode, latency)
			return
		}
		logger.Infof("[%s] %s - %d (%v)", c.Request.Method, path, statusCode, latency)
	}
}

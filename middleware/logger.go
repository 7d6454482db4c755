package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger logs one line per request. The health probe is skipped to keep
// load-balancer noise out of the logs, and failed requests are raised to
// warn so they stand out during battles.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("trace_id", GetTraceID(c)),
			zap.String("client_ip", c.ClientIP()),
		}
		if user := GetUsername(c); user != "" {
			fields = append(fields, zap.String("username", user))
		}

		if status >= 500 {
			log.Error("http", fields...)
		} else if status >= 400 {
			log.Warn("http", fields...)
		} else {
			log.Info("http", fields...)
		}
	}
}

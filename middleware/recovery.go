package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery converts a handler panic into a 500 response carrying the
// trace ID, so a player report can be matched to the stack in the logs.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				traceID := GetTraceID(c)
				log.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("trace_id", traceID),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":    "internal server error",
					"trace_id": traceID,
				})
			}
		}()
		c.Next()
	}
}

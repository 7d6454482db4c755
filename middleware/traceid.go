package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-ID"
)

// TraceID tags every request with a trace ID and echoes it in the
// response header. An inbound header value is honored only when it is a
// well-formed UUID, so clients cannot inject arbitrary strings into logs.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// GetTraceID returns the request's trace ID, empty outside TraceID.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		return v.(string)
	}
	return ""
}

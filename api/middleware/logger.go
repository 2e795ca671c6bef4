package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/easyscale/easyscale/internal/logger"
)

// RequestLogger writes one structured line per request, tagged with the
// trace ID assigned by TraceID.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"route":       route,
			"url":         c.Request.URL.RequestURI(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client":      c.ClientIP(),
		}
		if traceID := c.GetString("trace_id"); traceID != "" {
			fields["trace_id"] = traceID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

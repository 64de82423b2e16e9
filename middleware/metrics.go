package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/llm-gateway/monitor"
)

// Metrics records every inbound request's route, method, status, and
// duration through the process-wide metrics recorder.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		monitor.GlobalRecorder.RecordHTTPRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

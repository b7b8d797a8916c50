package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/library-registry/library-registry/internal/telemetry"
)

// MetricsMiddleware returns a Gin handler that records request count and
// latency for every request passing through the router.
//
// The path label is set from c.FullPath(), which returns the matched Gin route
// template (e.g. /api/v1/admin/libraries/:id) rather than the raw URL, so
// CNPJs, machine names, and probe paths never become label values. Requests
// that match no registered route use the literal "<no-route>".
//
// Register AFTER gin.Recovery() and RequestIDMiddleware so the status set by
// error handlers is captured correctly.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"docextract/internal/metrics"
)

// Metrics records request count, latency and in-flight requests. Paths are
// labelled by route template so unmatched URLs share one series.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.RequestStarted()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		done(c.Request.Method, path, c.Writer.Status())
	}
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/promptmart/internal/metrics"
)

// Metrics records request counts and latencies. Requests are labelled by
// route template so path parameters do not explode cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

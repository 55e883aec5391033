package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rosterd/pkg/metrics"
)

// UnmatchedRoute labels requests that hit no registered route, so probing
// arbitrary paths cannot grow the latency series without bound.
const UnmatchedRoute = "unmatched"

// Metrics observes request latency labelled by the route template, e.g.
// /api/students/:id rather than each student identifier.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnmatchedRoute
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

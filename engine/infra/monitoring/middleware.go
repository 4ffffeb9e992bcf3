package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records per-request metrics. Routes are labeled by their
// registered pattern, not the raw path, to keep cardinality bounded.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.ObserveRequest(route, c.Request.Method, strconv.Itoa(status),
			time.Since(start), status >= 500)
	}
}

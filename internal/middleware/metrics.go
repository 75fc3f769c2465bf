package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// httpObserver is satisfied by service.MetricsService.
type httpObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics times each request under its route template, so /students/:id is one series whatever
// the id. Paths no route matched are recorded as "unmatched". A live list stream is recorded once
// it closes.
func Metrics(observer httpObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observer.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

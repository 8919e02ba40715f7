package logging

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware logs one line per request with route, status and duration.
func GinMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		Log(Fields{
			Service:    service,
			Route:      route,
			Method:     c.Request.Method,
			Status:     c.Writer.Status(),
			DurationMS: time.Since(start).Milliseconds(),
		})
	}
}

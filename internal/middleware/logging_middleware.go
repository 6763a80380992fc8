package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"mls-delivery/pkg/logger"
)

func LoggingMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		if log != nil {
			// Pick up the request id (and client id, once authenticated)
			// stashed on the request context upstream.
			log.WithContext(c.Request.Context()).Sugar().
				Infof("%s %s %d %s", method, path, status, latency.String())
		}
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mls-delivery/internal/redis"
	"mls-delivery/internal/transport/httpdto"
)

// RateLimitMiddleware throttles message-store traffic per source IP. Store
// endpoints are the write-amplifying surface; reads and admin operations
// pass through untouched.
func RateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isStoreEndpoint(c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}

		result, err := limiter.AllowStore(c.Request.Context(), c.ClientIP())
		if err != nil {
			// A broken limiter must not take message delivery down with it.
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}

func isStoreEndpoint(method, path string) bool {
	return method == http.MethodPost && strings.HasPrefix(path, "/v1/messages/")
}

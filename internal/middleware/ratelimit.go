package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/logger"
	"github.com/charlesng35/estateportal/pkg/metrics"
	"github.com/charlesng35/estateportal/pkg/response"
)

const rateLimitPrefix = "ratelimit:"

// RateLimit limits requests per (client IP, route) within a fixed window.
// Counter failures let the request through.
func RateLimit(store RateStore, maxRequests int, window time.Duration) gin.HandlerFunc {
	log := logger.WithModule("http.ratelimit")

	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := rateLimitPrefix + c.ClientIP() + "|" + path

		count, resetIn, err := store.Increment(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("rate limit counter unavailable", zap.String("path", path), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, maxRequests-count)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			metrics.RateLimited.WithLabelValues(path).Inc()
			c.Header("Retry-After", strconv.Itoa(max(1, int(resetIn.Seconds()))))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/estateportal/pkg/logger"
)

// Logger writes a concise structured access log for each request. The
// resolved portal account is included when present.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if accountID := c.GetString(CtxAccountIDKey); accountID != "" {
			fields = append(fields, zap.String("portal_account_id", accountID))
		}

		logger.WithModule("http").Info("request", fields...)
	}
}

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/nicedowns-go/pkg/logger"
)

// Logger returns a gin middleware that logs every request. Server errors are
// also written to the error category.
func Logger(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	general := logAdapter.General()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}

		if statusCode >= 500 {
			logAdapter.Error().Error("HTTP error response", fields...)
			return
		}
		general.Info("HTTP request", fields...)
	}
}

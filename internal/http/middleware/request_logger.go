package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/metrics"
)

// RequestLogger пишет каждый запрос в logrus и в гистограмму длительности.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(status), elapsed)

		entry := logger.Log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   status,
			"duration": elapsed.String(),
			"ip":       c.ClientIP(),
		})
		switch {
		case status >= 500:
			entry.Error("http запрос")
		case status >= 400:
			entry.Warn("http запрос")
		default:
			entry.Info("http запрос")
		}
	}
}

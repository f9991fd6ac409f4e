package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/interface/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// ErrorHandler отдаёт ответ по последней ошибке из c.Errors, если обработчик не ответил сам.
// Внутренние причины клиенту не раскрываются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		code := apperror.CodeOf(err)
		entry := logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"code":   code,
		}).WithError(err)
		if code == apperror.ErrCodeInternal || code == apperror.ErrCodeDatabaseError {
			entry.Error("ошибка запроса")
		} else {
			entry.Debug("ошибка запроса")
		}

		response.Error(c, err)
	}
}

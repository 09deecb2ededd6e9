package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/alwalid54321/su-st-sub001/internal/logger"
)

// AccessLog пишет одну запись на запрос. Тело запроса не логируется: в нём пароли и коды.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"request_id": c.GetString(ContextRequestIDKey),
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		}

		entry := logger.Log.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.WithField("errors", c.Errors.String()).Error("http: request completed")
		case c.Writer.Status() >= 400:
			entry.Warn("http: request completed")
		default:
			entry.Info("http: request completed")
		}
	}
}

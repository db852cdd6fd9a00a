package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lifeline/donation-api/pkg/logger"
)

// Logger attaches a request-scoped logger to the context and writes one
// access line per request.
func Logger(base *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		reqLog := base.With("request_id", c.GetString(ContextRequestID))
		c.Request = c.Request.WithContext(reqLog.ToContext(c.Request.Context()))

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()

		zl := reqLog.Zerolog()
		event := zl.Info()
		msg := "Request processed"
		switch {
		case status >= 500:
			event = zl.Error()
			msg = "Server error"
		case status >= 400:
			event = zl.Warn()
			msg = "Client error"
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Msg(msg)
	}
}

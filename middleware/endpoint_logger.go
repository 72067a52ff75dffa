package middleware

import (
	"time"

	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// EndpointCallLogger writes one structured log line per request. Server
// errors are logged at error level, client errors at warn.
func EndpointCallLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		level := zerolog.InfoLevel
		switch {
		case status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		}

		evt := util.Logger().WithLevel(level).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("raw_path", util.SanitizeLogValue(c.Request.URL.Path)).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("ip", c.ClientIP()).
			Str("user_agent", util.SanitizeLogValue(c.Request.UserAgent()))
		if id := GetRequestID(c); id != "" {
			evt = evt.Str("request_id", id)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Msg("endpoint call")
	}
}

package mw

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/metrics"
)

// RequestLogger attaches a request scoped logger to the request context and
// logs one line per request. It also records the request duration histogram.
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := base.With().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Logger()
		c.Request = c.Request.WithContext(logging.NewContextWithLogger(c.Request.Context(), logger))

		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Int("status", status).Dur("elapsed", elapsed).Str("client_ip", c.ClientIP()).Msg("request handled")
	}
}

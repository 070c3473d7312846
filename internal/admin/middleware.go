package admin

import (
	"time"

	"github.com/danmuck/headctl/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// envelopeKey carries the id of a queued command from postCommand to the
// request log line.
const envelopeKey = "headctl.envelope_id"

// requestTelemetry logs one line per request and records it under node.
// Command routes also log the command kind and, once queued, its envelope id
// so a request can be followed into the orchestrator logs.
func requestTelemetry(logger zerolog.Logger, node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(node, c.Request.Method, route, status, elapsed)

		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event = event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed)
		if kind := c.Param("kind"); kind != "" {
			event = event.Str("kind", kind)
		}
		if id := c.GetString(envelopeKey); id != "" {
			event = event.Str("id", id)
		}
		event.Msg("admin.request")
	}
}

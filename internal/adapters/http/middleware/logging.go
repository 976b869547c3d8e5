package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// probePrefix is the route group of probes and metrics.
const probePrefix = "/-/"

// Logging writes a "request started" and a "request completed" line per
// request. Completion is logged at WARN for 4xx and ERROR for 5xx. Probe
// routes and skipPaths are not logged.
func Logging(logger *slog.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := newPathSet(skipPaths)

	return func(c *gin.Context) {
		if skip.has(c.Request.URL.Path) || strings.HasPrefix(c.Request.URL.Path, probePrefix) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		log := requestLogger(c, logger)
		target := c.Request.URL.RequestURI()
		began := time.Now()

		log.InfoContext(ctx, "request started",
			slog.String("method", c.Request.Method),
			slog.String("path", target),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
		)

		c.Next()

		took := time.Since(began)
		status := c.Writer.Status()

		log.Log(ctx, levelForStatus(status), "request completed",
			slog.String("method", c.Request.Method),
			slog.String("path", target),
			slog.Int("status", status),
			slog.Duration("latency", took),
			slog.Int64("latency_ms", took.Milliseconds()),
			slog.Int("bytes", c.Writer.Size()),
		)
	}
}

// WithLogger seeds the request context with logger; RequestID and
// CorrelationID then enrich it in place of the process default.
func WithLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if logger != nil {
			c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		}

		c.Next()
	}
}

func levelForStatus(status int) slog.Level {
	if status >= http.StatusInternalServerError {
		return slog.LevelError
	}

	if status >= http.StatusBadRequest {
		return slog.LevelWarn
	}

	return slog.LevelInfo
}

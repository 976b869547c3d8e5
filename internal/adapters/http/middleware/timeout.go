package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
)

// Timeout bounds the request context by d. Handlers run inline and are
// expected to return once ctx is done; if the deadline hit before anything
// was written, a 504 TIMEOUT envelope goes out. skipPaths (the import upload)
// and a non-positive d get no deadline.
func Timeout(d time.Duration, skipPaths ...string) gin.HandlerFunc {
	skip := newPathSet(skipPaths)

	return func(c *gin.Context) {
		if d <= 0 || skip.has(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if c.Writer.Written() || !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}

		requestLogger(c, nil).WarnContext(ctx, "request timeout",
			slog.String("route", c.Request.Method+" "+c.Request.URL.Path),
			slog.Duration("timeout", d),
		)

		dto.AbortWithErrorCode(c, dto.ErrorCodeTimeout, "request timeout exceeded")
	}
}

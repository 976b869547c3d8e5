package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
)

// Recovery converts a panic further down the chain into a 500 envelope and
// logs the stack. It must be the first middleware. Each onPanic hook also
// receives the recovered value.
func Recovery(logger *slog.Logger, onPanic ...func(recovered any, stack []byte)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			stack := debug.Stack()
			for _, hook := range onPanic {
				hook(recovered, stack)
			}

			requestLogger(c, logger).ErrorContext(c.Request.Context(), "panic recovered",
				slog.Any("error", recovered),
				slog.String("route", c.Request.Method+" "+c.Request.URL.Path),
				slog.String("trace_id", dto.TraceID(c)),
				slog.String("stack", string(stack)),
			)

			// Headers already went out; all that is left is to stop the chain.
			if c.Writer.Written() {
				c.Abort()
				return
			}

			dto.AbortWithErrorCode(c, dto.ErrorCodeInternal, "an internal error occurred")
		}()

		c.Next()
	}
}

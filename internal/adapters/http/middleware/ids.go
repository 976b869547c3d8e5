package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

const (
	// HeaderRequestID identifies a single HTTP request.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID identifies a whole transaction across services,
	// including the calls made to the remote quote service.
	HeaderCorrelationID = "X-Correlation-ID"
)

type idSpec struct {
	header string
	enrich []func(context.Context, string) context.Context
}

// RequestID takes X-Request-ID from the request or generates a UUID v4.
// The ID is echoed in the response and stored on the request context for
// the request logger and the outbound client.
func RequestID() gin.HandlerFunc {
	return idMiddleware(idSpec{
		header: HeaderRequestID,
		enrich: []func(context.Context, string) context.Context{
			ContextWithRequestID,
			logging.WithRequestID,
		},
	})
}

// CorrelationID behaves like RequestID for X-Correlation-ID. An inbound
// value is propagated unchanged; otherwise this request starts the transaction.
func CorrelationID() gin.HandlerFunc {
	return idMiddleware(idSpec{
		header: HeaderCorrelationID,
		enrich: []func(context.Context, string) context.Context{
			ContextWithCorrelationID,
			logging.WithCorrelationID,
		},
	})
}

func idMiddleware(spec idSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(spec.header)
		if id == "" {
			id = uuid.New().String()
		}

		c.Header(spec.header, id)

		ctx := c.Request.Context()
		for _, enrich := range spec.enrich {
			ctx = enrich(ctx, id)
		}

		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

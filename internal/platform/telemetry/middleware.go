package telemetry

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

const instrumentationName = "github.com/jsamuelsen/quote-sync/telemetry"

// HeaderTraceID echoes the active trace ID on every traced response.
const HeaderTraceID = "X-Trace-ID"

// unmatchedRoute labels requests no route matched, keeping the route
// attribute's cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics holds HTTP server instruments.
type Metrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
}

// NewMetrics creates the HTTP server instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	var (
		m   Metrics
		err error
	)

	if m.requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.requestTotal, err = meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.activeRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Metrics) begin(ctx context.Context, attrs []attribute.KeyValue) func(status int) {
	start := time.Now()
	m.activeRequests.Add(ctx, 1, metric.WithAttributes(attrs...))

	return func(status int) {
		m.activeRequests.Add(ctx, -1, metric.WithAttributes(attrs...))

		done := metric.WithAttributes(append(attrs, attribute.Int("http.status_code", status))...)
		m.requestDuration.Record(ctx, time.Since(start).Seconds(), done)
		m.requestTotal.Add(ctx, 1, done)
	}
}

// Middleware records HTTP server metrics, echoes the trace ID as X-Trace-ID
// and adds it to the request logger. Install it after TracingMiddleware so a
// span is already on the request context. An instrument that cannot be
// created is reported to the otel error handler and metrics are skipped.
func Middleware() gin.HandlerFunc {
	metrics, err := NewMetrics()
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			traceID := sc.TraceID().String()

			c.Header(HeaderTraceID, traceID)
			c.Request = c.Request.WithContext(logging.WithTraceID(ctx, traceID))
		}

		if metrics == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		finish := metrics.begin(ctx, []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
		})

		c.Next()

		finish(c.Writer.Status())
	}
}

// TracingMiddleware returns the otelgin tracing middleware.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

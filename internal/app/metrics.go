package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/jsamuelsen/quote-sync/app"

// Metrics holds application-level counters. A nil *Metrics records nothing.
type Metrics struct {
	quotesAdded    metric.Int64Counter
	quotesImported metric.Int64Counter
	syncRuns       metric.Int64Counter
	syncChanges    metric.Int64Counter
	pushResults    metric.Int64Counter
}

// NewMetrics creates the counters on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	quotesAdded, err := meter.Int64Counter(
		"quotes.added",
		metric.WithDescription("Quotes added through the API"),
	)
	if err != nil {
		return nil, err
	}

	quotesImported, err := meter.Int64Counter(
		"quotes.imported",
		metric.WithDescription("Quotes appended by import"),
	)
	if err != nil {
		return nil, err
	}

	syncRuns, err := meter.Int64Counter(
		"sync.runs",
		metric.WithDescription("Sync runs by result"),
	)
	if err != nil {
		return nil, err
	}

	syncChanges, err := meter.Int64Counter(
		"sync.changes",
		metric.WithDescription("Local records added or updated by sync"),
	)
	if err != nil {
		return nil, err
	}

	pushResults, err := meter.Int64Counter(
		"push.results",
		metric.WithDescription("Remote push attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		quotesAdded:    quotesAdded,
		quotesImported: quotesImported,
		syncRuns:       syncRuns,
		syncChanges:    syncChanges,
		pushResults:    pushResults,
	}, nil
}

func (m *Metrics) recordAdded(ctx context.Context) {
	if m == nil {
		return
	}

	m.quotesAdded.Add(ctx, 1)
}

func (m *Metrics) recordImported(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}

	m.quotesImported.Add(ctx, int64(n))
}

func (m *Metrics) recordSync(ctx context.Context, report SyncReport) {
	if m == nil {
		return
	}

	result := "success"
	if report.Err != nil {
		result = "failure"
	}

	m.syncRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))

	if changes := report.Added + report.Updated; changes > 0 {
		m.syncChanges.Add(ctx, int64(changes))
	}
}

func (m *Metrics) recordPush(ctx context.Context, err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}

	m.pushResults.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RegisterStoreSize exposes the current quote count as the quote_store_size gauge.
// Registering the same gauge twice is not an error.
func RegisterStoreSize(reg prometheus.Registerer, size func() int) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "quote_store_size",
		Help: "Number of quotes in the local store.",
	}, func() float64 {
		return float64(size())
	})

	if err := reg.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}

		return err
	}

	return nil
}

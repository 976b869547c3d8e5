package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedStore writes quotes under the quotes key.
func seedStore(t *testing.T, kv ports.KeyValueStore, quotes ...domain.Quote) {
	t.Helper()

	raw, err := json.Marshal(toStored(quotes))
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), KeyQuotes, raw))
}

// storedQuotes decodes whatever is persisted under the quotes key.
func storedQuotes(t *testing.T, kv ports.KeyValueStore) []domain.Quote {
	t.Helper()

	raw, err := kv.Get(context.Background(), KeyQuotes)
	require.NoError(t, err)

	var stored []storedQuote
	require.NoError(t, json.Unmarshal(raw, &stored))

	out := make([]domain.Quote, len(stored))
	for i, sq := range stored {
		out[i] = domain.Quote{Text: sq.Text, Category: sq.Category}
	}

	return out
}

// newTestService builds an initialized service over kv with a seeded selector.
func newTestService(t *testing.T, kv ports.KeyValueStore, opts ...func(*QuoteServiceConfig)) *QuoteService {
	t.Helper()

	cfg := QuoteServiceConfig{
		Store:    kv,
		Session:  memory.New(),
		Selector: NewSelector(rand.NewPCG(1, 2)),
		Logger:   discardLogger(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	svc := NewQuoteService(cfg)
	svc.Init(context.Background())

	return svc
}

// recordingPusher is a LocalPusher that keeps what it was handed.
type recordingPusher struct {
	mu     sync.Mutex
	pushed []domain.Quote
}

func (r *recordingPusher) PushLocal(q domain.Quote) bool {
	return r.PushLocalAll([]domain.Quote{q})
}

func (r *recordingPusher) PushLocalAll(quotes []domain.Quote) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pushed = append(r.pushed, quotes...)

	return true
}

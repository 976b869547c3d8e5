package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// Storage keys.
const (
	KeyQuotes           = "quotes"
	KeySelectedCategory = "selectedCategory"
	KeyLastViewedQuote  = "lastViewedQuote"
)

// storedQuote is the persisted shape of a quote.
type storedQuote struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

func toStored(quotes []domain.Quote) []storedQuote {
	out := make([]storedQuote, len(quotes))
	for i, q := range quotes {
		out[i] = storedQuote{Text: q.Text, Category: q.Category}
	}

	return out
}

// QuoteStore is the ordered in-memory quote list backed by a KeyValueStore.
// Not safe for concurrent use; QuoteService serializes access.
type QuoteStore struct {
	kv     ports.KeyValueStore
	logger *slog.Logger
	quotes []domain.Quote
}

// NewQuoteStore creates an empty store over kv.
func NewQuoteStore(kv ports.KeyValueStore, logger *slog.Logger) *QuoteStore {
	if kv == nil {
		panic("quote store requires a key-value store")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &QuoteStore{
		kv:     kv,
		logger: logger,
	}
}

// Load hydrates the list from storage. Invalid records are skipped and
// counted. A missing, unreadable or unparseable value, or one where every
// record is invalid, replaces the list with the seed quotes. Load never fails.
func (s *QuoteStore) Load(ctx context.Context) {
	quotes, err := s.read(ctx)
	if err != nil {
		if domain.IsNotFound(err) {
			s.logger.InfoContext(ctx, "no stored quotes, seeding defaults")
		} else {
			s.logger.WarnContext(ctx, "stored quotes unusable, seeding defaults",
				slog.Any("error", err),
			)
		}

		s.quotes = domain.DefaultQuotes()

		return
	}

	s.quotes = quotes

	s.logger.DebugContext(ctx, "quotes loaded", slog.Int("count", len(quotes)))
}

// logSkipped reports the records read dropped. They are gone from storage at
// the next commit.
func (s *QuoteStore) logSkipped(ctx context.Context, kept int, dropped []error) {
	if len(dropped) == 0 {
		return
	}

	s.logger.WarnContext(ctx, "skipped invalid stored quotes",
		slog.Int("kept", kept),
		slog.Int("skipped", len(dropped)),
		slog.Any("first_error", dropped[0]),
	)
}

func (s *QuoteStore) read(ctx context.Context) ([]domain.Quote, error) {
	raw, err := s.kv.Get(ctx, KeyQuotes)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, err
		}

		return nil, domain.NewCorruptionError(KeyQuotes, err)
	}

	var stored []storedQuote
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, domain.NewCorruptionError(KeyQuotes, err)
	}

	if stored == nil {
		return nil, domain.NewCorruptionError(KeyQuotes, fmt.Errorf("value is null"))
	}

	quotes := make([]domain.Quote, 0, len(stored))

	var dropped []error

	for i, sq := range stored {
		q := domain.Quote{Text: sq.Text, Category: sq.Category}
		if err := q.Validate(); err != nil {
			dropped = append(dropped, fmt.Errorf("record %d: %w", i, err))
			continue
		}

		quotes = append(quotes, q)
	}

	if len(quotes) == 0 && len(dropped) > 0 {
		return nil, domain.NewCorruptionError(KeyQuotes, errors.Join(dropped...))
	}

	s.logSkipped(ctx, len(quotes), dropped)

	return quotes, nil
}

// Save writes the full list, replacing whatever was stored.
func (s *QuoteStore) Save(ctx context.Context) error {
	return s.write(ctx, s.quotes)
}

func (s *QuoteStore) write(ctx context.Context, quotes []domain.Quote) error {
	raw, err := json.Marshal(toStored(quotes))
	if err != nil {
		return fmt.Errorf("encoding quotes: %w", err)
	}

	if err := s.kv.Set(ctx, KeyQuotes, raw); err != nil {
		return fmt.Errorf("persisting quotes: %w", err)
	}

	return nil
}

// Commit persists next and, only on success, makes it the current list.
func (s *QuoteStore) Commit(ctx context.Context, next []domain.Quote) error {
	if err := s.write(ctx, next); err != nil {
		return err
	}

	s.quotes = next

	return nil
}

// All returns a copy of the list in insertion order.
func (s *QuoteStore) All() []domain.Quote {
	out := make([]domain.Quote, len(s.quotes))
	copy(out, s.quotes)

	return out
}

// Len returns the number of quotes.
func (s *QuoteStore) Len() int {
	return len(s.quotes)
}

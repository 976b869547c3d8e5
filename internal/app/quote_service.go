// Package app contains application services that orchestrate use cases.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// CategoryIndex is the filter selector state: every option plus the current choice.
type CategoryIndex struct {
	// Options is "all" followed by the distinct categories in first-seen order.
	Options []string

	// Selected is the persisted filter. It may name a category that no longer exists.
	Selected string
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	Imported  int
	Discarded int
	Total     int
}

// QuoteService is the single owner of the quote list, the selected category
// and the session record. Every mutation and its persistence happen under
// one lock, so concurrent adds, imports and syncs cannot lose updates.
type QuoteService struct {
	mu       sync.Mutex
	store    *QuoteStore
	durable  ports.KeyValueStore
	session  ports.KeyValueStore
	selected string

	selector    *Selector
	publisher   ports.EventPublisher
	forward     LocalPusher
	pushOnAdd   bool
	pushImports bool
	executor    *Executor
	metrics     *Metrics
	logger      *slog.Logger
}

// QuoteServiceConfig contains configuration for the quote service.
type QuoteServiceConfig struct {
	// Store is the durable store holding the quote list and selected category.
	Store ports.KeyValueStore

	// Session holds the last viewed quote. Defaults to Store when nil.
	Session ports.KeyValueStore

	// Publisher receives domain events. Optional.
	Publisher ports.EventPublisher

	// PushOnAdd forwards each added quote once ForwardTo is set.
	PushOnAdd bool

	// PushImports forwards imported quotes once ForwardTo is set.
	PushImports bool

	Selector *Selector
	Metrics  *Metrics
	Logger   *slog.Logger
}

// LocalPusher submits locally created quotes to the remote without blocking.
// SyncService implements it.
type LocalPusher interface {
	PushLocal(q domain.Quote) bool
	PushLocalAll(quotes []domain.Quote) bool
}

// NewQuoteService creates a new quote service with the provided dependencies.
// Call Init before serving requests.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil {
		panic("quote service requires a store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(slog.String("component", "quote_service"))

	session := cfg.Session
	if session == nil {
		session = cfg.Store
	}

	selector := cfg.Selector
	if selector == nil {
		selector = NewSelector(nil)
	}

	return &QuoteService{
		store:       NewQuoteStore(cfg.Store, logger),
		durable:     cfg.Store,
		session:     session,
		selected:    domain.CategoryAll,
		selector:    selector,
		publisher:   cfg.Publisher,
		pushOnAdd:   cfg.PushOnAdd,
		pushImports: cfg.PushImports,
		executor:    NewExecutor(logger),
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// ForwardTo sets where added and imported quotes are pushed. The sync
// service is built on top of the quote service, so it is attached here
// rather than through the config.
func (s *QuoteService) ForwardTo(p LocalPusher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forward = p
}

// Init hydrates the quote list and the selected category from durable storage.
func (s *QuoteService) Init(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Load(ctx)

	raw, err := s.durable.Get(ctx, KeySelectedCategory)

	switch {
	case err == nil:
		s.selected = domain.NormalizeCategory(string(raw))
	case domain.IsNotFound(err):
		s.selected = domain.CategoryAll
	default:
		s.logger.WarnContext(ctx, "selected category unreadable, using all",
			slog.Any("error", err),
		)

		s.selected = domain.CategoryAll
	}

	s.logger.InfoContext(ctx, "quote service initialized",
		slog.Int("quotes", s.store.Len()),
		slog.String("selected_category", s.selected),
	)
}

// List returns the quotes in category, or every quote for "all".
func (s *QuoteService) List(_ context.Context, category string) []domain.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.FilterByCategory(s.store.All(), domain.NormalizeCategory(category))
}

// Len returns the number of stored quotes.
func (s *QuoteService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Len()
}

// Add validates, appends and persists a new quote.
// A ValidationError or a persistence failure leaves the list unchanged.
func (s *QuoteService) Add(ctx context.Context, text, category string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	s.mu.Lock()
	err = s.store.Commit(ctx, append(s.store.All(), q))
	forward := s.forward
	s.mu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist added quote", slog.Any("error", err))
		return domain.Quote{}, err
	}

	s.logger.InfoContext(ctx, "quote added", slog.String("category", q.Category))
	s.metrics.recordAdded(ctx)
	s.publish(ctx, domain.QuoteAdded{Quote: q})

	if s.pushOnAdd && forward != nil {
		forward.PushLocal(q)
	}

	return q, nil
}

// Categories returns the filter options and the current selection.
func (s *QuoteService) Categories(_ context.Context) CategoryIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	return CategoryIndex{
		Options:  domain.CategoryOptions(s.store.All()),
		Selected: s.selected,
	}
}

// SelectCategory persists the filter choice. Categories not present in the
// list are accepted; a blank value selects "all".
func (s *QuoteService) SelectCategory(ctx context.Context, category string) (string, error) {
	category = domain.NormalizeCategory(category)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.durable.Set(ctx, KeySelectedCategory, []byte(category)); err != nil {
		return "", fmt.Errorf("persisting selected category: %w", err)
	}

	s.selected = category

	return category, nil
}

// ShowRandom picks a quote from the pool matching the selected category and
// records it as the last viewed quote. An empty pool yields an EmptyPoolError;
// there is no fallback to other categories.
func (s *QuoteService) ShowRandom(ctx context.Context) (domain.Quote, error) {
	s.mu.Lock()
	selected := s.selected
	pool := domain.FilterByCategory(s.store.All(), selected)
	s.mu.Unlock()

	q, ok := s.selector.Pick(pool)
	if !ok {
		return domain.Quote{}, domain.NewEmptyPoolError(selected)
	}

	s.remember(ctx, q)

	return q, nil
}

// Current returns the last viewed quote without re-rolling, falling through
// to ShowRandom when the session holds nothing usable.
func (s *QuoteService) Current(ctx context.Context) (domain.Quote, error) {
	raw, err := s.session.Get(ctx, KeyLastViewedQuote)
	if err == nil {
		var sq storedQuote
		if jsonErr := json.Unmarshal(raw, &sq); jsonErr == nil {
			q := domain.Quote{Text: sq.Text, Category: sq.Category}
			if q.Validate() == nil {
				return q, nil
			}
		}

		s.logger.WarnContext(ctx, "last viewed quote unusable, picking again",
			slog.Any("error", domain.NewCorruptionError(KeyLastViewedQuote, nil)),
		)
	} else if !domain.IsNotFound(err) {
		s.logger.WarnContext(ctx, "last viewed quote unreadable", slog.Any("error", err))
	}

	return s.ShowRandom(ctx)
}

func (s *QuoteService) remember(ctx context.Context, q domain.Quote) {
	raw, err := json.Marshal(storedQuote{Text: q.Text, Category: q.Category})
	if err == nil {
		err = s.session.Set(ctx, KeyLastViewedQuote, raw)
	}

	if err != nil {
		s.logger.WarnContext(ctx, "failed to record last viewed quote", slog.Any("error", err))
	}
}

// Merge reconciles a remote batch into the list, remote wins by text.
// The list is persisted and QuotesSynced published only when something changed.
func (s *QuoteService) Merge(ctx context.Context, remote []domain.Quote) (domain.ReconcileResult, error) {
	s.mu.Lock()
	merged, result := domain.Reconcile(s.store.All(), remote)

	var err error
	if result.Changed() {
		err = s.store.Commit(ctx, merged)
	}
	s.mu.Unlock()

	if err != nil {
		return domain.ReconcileResult{}, err
	}

	if result.Changed() {
		s.publish(ctx, domain.QuotesSynced{Result: result})
	}

	return result, nil
}

// Export renders the whole list as a transfer document.
func (s *QuoteService) Export(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	quotes := s.store.All()
	s.mu.Unlock()

	return ExportDocument(quotes)
}

// Import appends the valid records of doc to the list. Malformed documents
// return a FormatError and nothing is changed; so does a persistence failure.
func (s *QuoteService) Import(ctx context.Context, doc []byte) (ImportResult, error) {
	var parsed ImportDocument

	err := s.executor.Run(ctx, "import_quotes",
		Step{Name: StepValidate, Run: func(context.Context) error {
			if len(doc) == 0 {
				return domain.NewFormatError("import", "document is empty", nil)
			}

			return nil
		}},
		Step{Name: StepPerform, Run: func(context.Context) (err error) {
			parsed, err = ParseImportDocument(doc)
			return err
		}},
		Step{Name: StepVerify, Run: func(context.Context) error {
			if n := len(parsed.Quotes) + parsed.Discarded; n != parsed.Elements {
				return fmt.Errorf("import accounted for %d of %d records", n, parsed.Elements)
			}

			return nil
		}},
		Step{Name: StepArchive, Run: func(ctx context.Context) error {
			if len(parsed.Quotes) == 0 {
				return nil
			}

			s.mu.Lock()
			defer s.mu.Unlock()

			return s.store.Commit(ctx, append(s.store.All(), parsed.Quotes...))
		}},
	)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{
		Imported:  len(parsed.Quotes),
		Discarded: parsed.Discarded,
		Total:     parsed.Elements,
	}

	if result.Imported > 0 {
		s.metrics.recordImported(ctx, result.Imported)
		s.publish(ctx, domain.QuotesImported{Imported: result.Imported, Discarded: result.Discarded})

		s.mu.Lock()
		forward := s.forward
		s.mu.Unlock()

		if s.pushImports && forward != nil {
			forward.PushLocalAll(parsed.Quotes)
		}
	}

	return result, nil
}

func (s *QuoteService) publish(ctx context.Context, event ports.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", event.EventType()),
			slog.Any("error", err),
		)
	}
}

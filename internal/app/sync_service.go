package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// SyncReport describes one sync run.
type SyncReport struct {
	// Fetched is the size of the remote batch, zero when the fetch failed.
	Fetched int

	// Added and Updated count local records that actually changed.
	Added   int
	Updated int

	// Err is the fetch or persistence failure, if any.
	Err error

	// At is when the run finished.
	At time.Time
}

// Changed reports whether the run modified the local list.
func (r SyncReport) Changed() bool {
	return r.Added > 0 || r.Updated > 0
}

// SyncServiceConfig contains configuration for the sync service.
type SyncServiceConfig struct {
	Remote ports.RemoteQuoteSource
	Quotes *QuoteService

	// Pusher receives quotes passed to PushLocal and PushLocalAll. Optional.
	Pusher *Pusher

	// BatchSize is the number of remote records requested per run. Defaults to 3.
	BatchSize int

	// Timeout bounds a single fetch. Defaults to 10s.
	Timeout time.Duration

	Clock   Clock
	Metrics *Metrics
	Logger  *slog.Logger
}

// SyncService reconciles the local list against the remote source.
// Remote failures never propagate; they are logged and kept in the report.
type SyncService struct {
	remote    ports.RemoteQuoteSource
	quotes    *QuoteService
	pusher    *Pusher
	batchSize int
	timeout   time.Duration
	clock     Clock
	metrics   *Metrics
	logger    *slog.Logger

	mu   sync.Mutex
	last *SyncReport
}

// NewSyncService creates a new sync service with the provided dependencies.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	if cfg.Remote == nil {
		panic("sync service requires a remote quote source")
	}

	if cfg.Quotes == nil {
		panic("sync service requires a quote service")
	}

	if cfg.BatchSize < 1 {
		cfg.BatchSize = 3
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncService{
		remote:    cfg.Remote,
		quotes:    cfg.Quotes,
		pusher:    cfg.Pusher,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		logger:    logger.With(slog.String("component", "sync_service")),
	}
}

// FetchRemote retrieves one batch. On failure it returns an empty batch
// together with the error, which the caller records rather than propagates.
func (s *SyncService) FetchRemote(ctx context.Context) ([]domain.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	batch, err := s.remote.FetchQuotes(ctx, s.batchSize)
	if err != nil {
		s.logger.WarnContext(ctx, "remote fetch failed", slog.Any("error", err))
		return []domain.Quote{}, err
	}

	s.logger.DebugContext(ctx, "remote batch fetched", slog.Int("count", len(batch)))

	return batch, nil
}

// SyncNow fetches a batch and merges it into the local list.
func (s *SyncService) SyncNow(ctx context.Context) SyncReport {
	batch, err := s.FetchRemote(ctx)

	report := SyncReport{Fetched: len(batch), Err: err}

	if err == nil {
		result, mergeErr := s.quotes.Merge(ctx, batch)
		if mergeErr != nil {
			s.logger.ErrorContext(ctx, "failed to persist synced quotes", slog.Any("error", mergeErr))
			report.Err = mergeErr
		} else {
			report.Added = result.Added
			report.Updated = result.Updated
		}
	}

	report.At = s.clock.Now()

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	s.metrics.recordSync(ctx, report)

	if report.Changed() {
		s.logger.InfoContext(ctx, "quotes synced",
			slog.Int("added", report.Added),
			slog.Int("updated", report.Updated),
		)
	}

	return report
}

// Run adapts SyncNow to a scheduler task.
func (s *SyncService) Run(ctx context.Context) {
	s.SyncNow(ctx)
}

// LastReport returns the most recent report, if any run completed.
func (s *SyncService) LastReport() (SyncReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return SyncReport{}, false
	}

	return *s.last, true
}

// PushLocal hands q to the background pusher. It never blocks and reports
// whether the push was queued.
func (s *SyncService) PushLocal(q domain.Quote) bool {
	if s.pusher == nil {
		return false
	}

	return s.pusher.Enqueue(q)
}

// PushLocalAll hands a batch to the background pusher as one unit.
func (s *SyncService) PushLocalAll(quotes []domain.Quote) bool {
	if s.pusher == nil {
		return false
	}

	return s.pusher.EnqueueAll(quotes)
}

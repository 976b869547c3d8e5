package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// ErrPushQueueFull is the result error for a push dropped because the queue was full.
var ErrPushQueueFull = domain.NewUnavailableError("push-queue", "queue full")

// ErrPusherStopped is the result error for a push submitted after Stop.
var ErrPusherStopped = domain.NewUnavailableError("push-queue", "stopped")

// PushResult is the outcome of one fire-and-forget push.
type PushResult struct {
	Quote domain.Quote
	Err   error
}

// PusherConfig contains configuration for the pusher.
type PusherConfig struct {
	Remote ports.RemoteQuoteSource

	// Workers bounds concurrent pushes. Defaults to 2.
	Workers int

	// QueueSize bounds pending batches and buffered results. Defaults to 64.
	QueueSize int

	// Timeout applies to each individual push. Defaults to 10s.
	Timeout time.Duration

	Metrics *Metrics
	Logger  *slog.Logger
}

// Pusher submits local quotes to the remote in the background.
// Failures never reach the caller that enqueued the quote; they are logged
// and delivered on Results.
type Pusher struct {
	remote  ports.RemoteQuoteSource
	workers int
	timeout time.Duration
	metrics *Metrics
	logger  *slog.Logger

	queue   chan []domain.Quote
	results chan PushResult

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewPusher creates a pusher. Call Start to begin draining the queue.
func NewPusher(cfg PusherConfig) *Pusher {
	if cfg.Remote == nil {
		panic("pusher requires a remote quote source")
	}

	if cfg.Workers < 1 {
		cfg.Workers = 2
	}

	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pusher{
		remote:  cfg.Remote,
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		logger:  logger.With(slog.String("component", "pusher")),
		queue:   make(chan []domain.Quote, cfg.QueueSize),
		results: make(chan PushResult, cfg.QueueSize),
	}
}

// Start launches the workers. Calling Start more than once is a no-op.
func (p *Pusher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	for range p.workers {
		g.Go(func() error {
			for batch := range p.queue {
				p.PushAll(gctx, batch)
			}

			return nil
		})
	}

	p.started = true
	p.cancel = cancel
	p.group = g
}

// Stop closes the queue, lets the workers drain it and waits for them.
// Pending pushes still honor their own timeout.
func (p *Pusher) Stop() {
	p.mu.Lock()

	if p.stopped {
		p.mu.Unlock()
		return
	}

	p.stopped = true
	close(p.queue)
	g, cancel := p.group, p.cancel
	p.mu.Unlock()

	if g != nil {
		_ = g.Wait()
		cancel()
	}
}

// Results delivers the outcome of every push. Results are dropped when the
// buffer is full.
func (p *Pusher) Results() <-chan PushResult {
	return p.results
}

// Enqueue schedules q for a background push and reports whether it was accepted.
func (p *Pusher) Enqueue(q domain.Quote) bool {
	return p.EnqueueAll([]domain.Quote{q})
}

// EnqueueAll schedules a batch for a background push. The batch is dropped,
// and every record reported as failed, when the queue is full or stopped.
func (p *Pusher) EnqueueAll(quotes []domain.Quote) bool {
	if len(quotes) == 0 {
		return true
	}

	batch := make([]domain.Quote, len(quotes))
	copy(batch, quotes)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.reject(batch, ErrPusherStopped)
		return false
	}

	select {
	case p.queue <- batch:
		return true
	default:
		p.reject(batch, ErrPushQueueFull)
		return false
	}
}

func (p *Pusher) reject(batch []domain.Quote, err error) {
	p.logger.Warn("push dropped",
		slog.Int("count", len(batch)),
		slog.Any("error", err),
	)

	for _, q := range batch {
		p.deliver(PushResult{Quote: q, Err: err})
	}
}

// PushAll pushes quotes with bounded concurrency and returns every outcome
// in input order. Each push gets its own timeout.
func (p *Pusher) PushAll(ctx context.Context, quotes []domain.Quote) []PushResult {
	errs := forEachLimit(ctx, p.workers, len(quotes), func(ctx context.Context, i int) error {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		return p.remote.PushQuote(ctx, quotes[i])
	})

	results := make([]PushResult, len(quotes))
	for i, q := range quotes {
		results[i] = PushResult{Quote: q, Err: errs[i]}

		p.metrics.recordPush(ctx, errs[i])

		if errs[i] != nil {
			p.logger.WarnContext(ctx, "push failed",
				slog.String("category", q.Category),
				slog.Any("error", errs[i]),
			)
		} else {
			p.logger.DebugContext(ctx, "quote pushed", slog.String("category", q.Category))
		}

		p.deliver(results[i])
	}

	return results
}

func (p *Pusher) deliver(r PushResult) {
	select {
	case p.results <- r:
	default:
		p.logger.Warn("push result dropped, no reader keeping up")
	}
}

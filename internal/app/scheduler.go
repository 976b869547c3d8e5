package app

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts time so periodic work can be driven by hand in tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of *time.Ticker the scheduler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// SchedulerConfig contains configuration for a scheduler.
type SchedulerConfig struct {
	// Name identifies the task in logs.
	Name string

	// Interval between runs. Must be positive.
	Interval time.Duration

	// Task is run once on Start and then on every tick.
	Task func(ctx context.Context)

	Clock  Clock
	Logger *slog.Logger
}

// Scheduler runs a task periodically until stopped. Runs never overlap.
type Scheduler struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)
	clock    Clock
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Task == nil {
		panic("scheduler requires a task")
	}

	if cfg.Interval <= 0 {
		panic("scheduler interval must be positive")
	}

	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		name:     cfg.Name,
		interval: cfg.Interval,
		task:     cfg.Task,
		clock:    cfg.Clock,
		logger:   logger.With(slog.String("component", "scheduler"), slog.String("task", cfg.Name)),
	}
}

// Start runs the task immediately and then every interval, until ctx is
// done or Stop is called. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.cancel = cancel
	s.done = done

	ticker := s.clock.NewTicker(s.interval)

	go s.loop(ctx, ticker, done)

	s.logger.InfoContext(ctx, "scheduler started", slog.Duration("interval", s.interval))
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "scheduled task panicked", slog.Any("panic", r))
		}
	}()

	s.task(ctx)
}

// Stop cancels the schedule and waits for an in-flight run to return.
// Stop on a scheduler that was never started is safe.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.logger.Info("scheduler stopped")
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancel != nil
}

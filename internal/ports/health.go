package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrDuplicateChecker is returned when a checker name is registered twice.
var ErrDuplicateChecker = errors.New("duplicate health checker")

// DefaultCheckTimeout bounds a single check when the registry has no
// explicit timeout.
const DefaultCheckTimeout = 2 * time.Second

// HealthChecker is a component readiness depends on. The sqlite store and
// the remote post client implement it.
type HealthChecker interface {
	// Name identifies the component in readiness output. Names are unique
	// within a registry.
	Name() string

	// Check returns nil when the component is usable. It must honor ctx.
	Check(ctx context.Context) error
}

// HealthRegistry aggregates the checkers registered at startup.
type HealthRegistry interface {
	// Register adds a critical checker: its failure makes the service unhealthy.
	Register(checker HealthChecker) error

	// RegisterOptional adds a checker whose failure only degrades readiness.
	// The remote mirror is registered this way because quotes keep being
	// served from local storage while it is down.
	RegisterOptional(checker HealthChecker) error

	// CheckAll runs every checker concurrently and aggregates the outcome.
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus is the outcome of one check or of the whole registry.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) rank() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// HealthResult is the aggregated readiness report.
type HealthResult struct {
	Status    HealthStatus            `json:"status"`
	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// CheckResult is the outcome of one checker. Message holds the failure.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Optional bool          `json:"optional,omitempty"`
	Duration time.Duration `json:"duration"`
}

// contribution is how much a single check can lower the overall status.
func (c *CheckResult) contribution() HealthStatus {
	switch {
	case c.Status == HealthStatusHealthy:
		return HealthStatusHealthy
	case c.Optional:
		return HealthStatusDegraded
	default:
		return HealthStatusUnhealthy
	}
}

type entry struct {
	checker  HealthChecker
	optional bool
}

// DefaultHealthRegistry is the HealthRegistry used by the service. It is
// safe for concurrent use.
type DefaultHealthRegistry struct {
	timeout time.Duration

	mu      sync.RWMutex
	entries []entry
	names   map[string]struct{}
}

// RegistryOption configures a DefaultHealthRegistry.
type RegistryOption func(*DefaultHealthRegistry)

// WithCheckTimeout bounds each check. Non-positive values are ignored.
func WithCheckTimeout(d time.Duration) RegistryOption {
	return func(r *DefaultHealthRegistry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewHealthRegistry returns an empty registry.
func NewHealthRegistry(opts ...RegistryOption) *DefaultHealthRegistry {
	r := &DefaultHealthRegistry{
		timeout: DefaultCheckTimeout,
		names:   make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *DefaultHealthRegistry) Register(checker HealthChecker) error {
	return r.add(entry{checker: checker})
}

func (r *DefaultHealthRegistry) RegisterOptional(checker HealthChecker) error {
	return r.add(entry{checker: checker, optional: true})
}

func (r *DefaultHealthRegistry) add(e entry) error {
	if e.checker == nil {
		return errors.New("health checker is nil")
	}

	name := e.checker.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
	}

	r.names[name] = struct{}{}
	r.entries = append(r.entries, e)

	return nil
}

// CheckAll gives each checker its own timeout. An empty registry is healthy.
func (r *DefaultHealthRegistry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	entries := append([]entry(nil), r.entries...)
	r.mu.RUnlock()

	outcomes := make([]*CheckResult, len(entries))

	var g errgroup.Group
	for i, e := range entries {
		g.Go(func() error {
			outcomes[i] = r.run(ctx, e)
			return nil
		})
	}

	_ = g.Wait()

	result := &HealthResult{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]*CheckResult, len(entries)),
		Timestamp: time.Now(),
	}

	for i, e := range entries {
		outcome := outcomes[i]
		result.Checks[e.checker.Name()] = outcome

		if c := outcome.contribution(); c.rank() > result.Status.rank() {
			result.Status = c
		}
	}

	return result
}

func (r *DefaultHealthRegistry) run(ctx context.Context, e entry) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := e.checker.Check(ctx)

	res := &CheckResult{
		Status:   HealthStatusHealthy,
		Optional: e.optional,
		Duration: time.Since(start),
	}

	if err != nil {
		res.Status = HealthStatusUnhealthy
		res.Message = err.Error()
	}

	return res
}

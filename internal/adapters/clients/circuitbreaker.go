package clients

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without contacting the remote while the
// breaker is open or its half-open probes are all in flight.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// defaultOpenTimeout applies when no open-state timeout is configured.
const defaultOpenTimeout = 30 * time.Second

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// HalfOpenLimit caps concurrent probes and is also the number of
	// successful probes that close the circuit again.
	HalfOpenLimit int

	// Clock defaults to time.Now.
	Clock func() time.Time

	// OnStateChange, when set, runs after every transition outside the
	// breaker's lock.
	OnStateChange func(from, to State)
}

// CircuitBreaker stops calling a remote that keeps failing.
//
//	closed    -> open       after MaxFailures consecutive failures
//	open      -> half-open  once Timeout has elapsed, on the next Allow
//	half-open -> closed     after HalfOpenLimit successful probes
//	half-open -> open       on any failed probe
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
}

// NewCircuitBreaker builds a closed breaker. Zero limits become one failure
// and one probe, and a zero Timeout becomes 30s, so a zero config still trips.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg.MaxFailures = max(cfg.MaxFailures, 1)
	cfg.HalfOpenLimit = max(cfg.HalfOpenLimit, 1)

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOpenTimeout
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &CircuitBreaker{cfg: cfg}
}

// transition records a state change made under the lock so the hook can
// run after it is released.
type transition struct {
	from, to State
}

// Allow reports whether a request may go out. A true result must be
// followed by exactly one RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	var (
		allowed bool
		change  *transition
	)

	switch cb.state {
	case StateClosed:
		allowed = true

	case StateOpen:
		if cb.cfg.Clock().Sub(cb.openedAt) >= cb.cfg.Timeout {
			change = cb.moveTo(StateHalfOpen)
			cb.inFlight = 1
			allowed = true
		}

	case StateHalfOpen:
		if cb.inFlight < cb.cfg.HalfOpenLimit {
			cb.inFlight++
			allowed = true
		}
	}

	cb.mu.Unlock()
	cb.notify(change)

	return allowed
}

// RecordSuccess reports a request that reached the remote and got an answer.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	var change *transition

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.inFlight = max(cb.inFlight-1, 0)
		cb.successes++

		if cb.successes >= cb.cfg.HalfOpenLimit {
			change = cb.moveTo(StateClosed)
		}
	}

	cb.mu.Unlock()
	cb.notify(change)
}

// RecordFailure reports a request that could not be completed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	var change *transition

	switch cb.state {
	case StateClosed:
		cb.failures++

		if cb.failures >= cb.cfg.MaxFailures {
			change = cb.moveTo(StateOpen)
		}

	case StateHalfOpen:
		cb.inFlight = max(cb.inFlight-1, 0)
		change = cb.moveTo(StateOpen)
	}

	cb.mu.Unlock()
	cb.notify(change)
}

// State returns the current state without advancing an expired open circuit.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(next State) *transition {
	if cb.state == next {
		return nil
	}

	change := &transition{from: cb.state, to: next}

	cb.state = next
	cb.failures = 0
	cb.successes = 0

	if next == StateOpen {
		cb.openedAt = cb.cfg.Clock()
		cb.inFlight = 0
	}

	return change
}

func (cb *CircuitBreaker) notify(change *transition) {
	if change != nil && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(change.from, change.to)
	}
}

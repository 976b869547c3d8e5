package clients

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(failures, probes int) (*CircuitBreaker, *fakeClock, *[]transition) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	seen := &[]transition{}

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   failures,
		Timeout:       time.Minute,
		HalfOpenLimit: probes,
		Clock:         clock.Now,
		OnStateChange: func(from, to State) {
			*seen = append(*seen, transition{from: from, to: to})
		},
	})

	return cb, clock, seen
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _, seen := newTestBreaker(3, 1)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "a success resets the count")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
	assert.Equal(t, []transition{{StateClosed, StateOpen}}, *seen)
}

func TestCircuitBreaker_Recovery(t *testing.T) {
	tests := []struct {
		name      string
		probes    int
		outcomes  []bool
		wantState State
	}{
		{name: "single probe succeeds", probes: 1, outcomes: []bool{true}, wantState: StateClosed},
		{name: "needs every probe", probes: 2, outcomes: []bool{true}, wantState: StateHalfOpen},
		{name: "two probes succeed", probes: 2, outcomes: []bool{true, true}, wantState: StateClosed},
		{name: "failed probe reopens", probes: 2, outcomes: []bool{true, false}, wantState: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock, _ := newTestBreaker(1, tt.probes)

			cb.RecordFailure()
			require.False(t, cb.Allow())

			clock.Advance(59 * time.Second)
			require.False(t, cb.Allow(), "still inside the open timeout")

			clock.Advance(time.Second)

			for _, ok := range tt.outcomes {
				require.True(t, cb.Allow())

				if ok {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
			}

			assert.Equal(t, tt.wantState, cb.State())
		})
	}
}

func TestCircuitBreaker_HalfOpenCapsProbes(t *testing.T) {
	cb, clock, _ := newTestBreaker(1, 2)

	cb.RecordFailure()
	clock.Advance(time.Minute)

	assert.True(t, cb.Allow())
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow(), "both probes are in flight")

	cb.RecordSuccess()
	assert.True(t, cb.Allow(), "a finished probe frees its slot")
}

func TestCircuitBreaker_ReopenRestartsTimeout(t *testing.T) {
	cb, clock, seen := newTestBreaker(1, 1)

	cb.RecordFailure()
	clock.Advance(time.Minute)
	require.True(t, cb.Allow())
	cb.RecordFailure()

	clock.Advance(30 * time.Second)
	assert.False(t, cb.Allow())

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateOpen},
	}, *seen)
}

func TestCircuitBreaker_HookMayReadState(t *testing.T) {
	var cb *CircuitBreaker

	var observed State

	cb = NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		OnStateChange: func(_, _ State) {
			observed = cb.State()
		},
	})

	cb.RecordFailure()
	assert.Equal(t, StateOpen, observed)
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 50, Timeout: time.Millisecond, HalfOpenLimit: 4})

	var wg sync.WaitGroup

	for i := range 500 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if !cb.Allow() {
				return
			}

			if i%3 == 0 {
				cb.RecordFailure()
			} else {
				cb.RecordSuccess()
			}
		}()
	}

	wg.Wait()

	assert.Contains(t, []State{StateClosed, StateOpen, StateHalfOpen}, cb.State())
}

func TestNewCircuitBreaker_ZeroConfig(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	assert.Equal(t, 1, cb.cfg.MaxFailures)
	assert.Equal(t, 1, cb.cfg.HalfOpenLimit)
	assert.Equal(t, defaultOpenTimeout, cb.cfg.Timeout)
	assert.True(t, cb.Allow())

	cb.RecordFailure()
	assert.False(t, cb.Allow())
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(-1):     "unknown",
		State(9):      "unknown",
	} {
		assert.Equal(t, want, state.String())
	}
}

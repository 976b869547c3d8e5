package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/platform/config"
)

// ErrMaxRetriesExceeded wraps the last failure once every attempt is spent.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// retryPolicy is exponential backoff with symmetric jitter.
type retryPolicy struct {
	attempts   int
	initial    time.Duration
	ceiling    time.Duration
	multiplier float64
	jitter     float64
}

func newRetryPolicy(cfg config.RetryConfig) retryPolicy {
	p := retryPolicy{
		attempts:   max(cfg.MaxAttempts, 1),
		initial:    cfg.InitialInterval,
		ceiling:    cfg.MaxInterval,
		multiplier: cfg.Multiplier,
		jitter:     cfg.JitterFactor,
	}

	if p.multiplier < 1 {
		p.multiplier = 1
	}

	if p.ceiling < p.initial {
		p.ceiling = p.initial
	}

	return p
}

// delay returns the wait before retry n, where n starts at 1. The ceiling
// caps the exponential part; jitter then moves it by up to ±jitter.
func (p retryPolicy) delay(n int) time.Duration {
	d := float64(p.initial) * math.Pow(p.multiplier, float64(n-1))
	d = math.Min(d, float64(p.ceiling))

	spread := rand.Float64()*2 - 1 //nolint:gosec // backoff jitter
	d += d * p.jitter * spread

	return time.Duration(d)
}

// attemptsFor limits a request whose body cannot be replayed to one try.
func (p retryPolicy) attemptsFor(req *http.Request) int {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return 1
	}
	return p.attempts
}

// wait sleeps for the backoff before retry n or returns early with ctx's error.
func (p retryPolicy) wait(ctx context.Context, n int) error {
	timer := time.NewTimer(p.delay(n))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify decides whether an attempt's outcome is worth another try. A 5xx
// answer is turned into an error and its body is released.
func classify(resp *http.Response, err error) (retry bool, failure error) {
	if err != nil {
		return isRetryableError(err), err
	}

	if resp.StatusCode < http.StatusInternalServerError {
		return false, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return true, fmt.Errorf("server error: %d", resp.StatusCode)
}

// isRetryableError accepts network timeouts and dial or connection errors.
// Cancellation is never retried.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}

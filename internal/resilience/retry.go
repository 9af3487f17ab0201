// Package resilience retries transient failures of upstream calls and stops
// calling upstreams that keep failing.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff controls Retry.
type Backoff struct {
	// Attempts is the total number of calls, first try included. Default 3.
	Attempts int
	// Initial is the delay before the first retry. Default 200ms.
	Initial time.Duration
	// Max caps any single delay. Default 5s.
	Max time.Duration
	// Jitter is the ± fraction applied to each delay. Default 0.
	Jitter float64
}

// DefaultBackoff suits interactive upstream fetches such as map tiles.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Initial: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2}
}

func (b Backoff) normalized() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 200 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 5 * time.Second
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// delay returns the wait before retry number n (0-based), doubling each time.
func (b Backoff) delay(n int) time.Duration {
	d := b.Initial << n
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * b.Jitter * float64(d))
	}
	return max(d, 0)
}

// Retry calls fn until it succeeds, returns a non-transient error, the
// attempts run out, or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, b Backoff, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b = b.normalized()

	var zero T
	var err error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt == b.Attempts-1 {
			break
		}

		wait := b.delay(attempt)
		zap.L().Debug("resilience: retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}

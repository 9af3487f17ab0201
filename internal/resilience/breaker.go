package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown elapses.
	BreakerOpen
	// BreakerProbing lets one call through to test the upstream.
	BreakerProbing
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned for calls rejected by an open Breaker.
var ErrBreakerOpen = eris.New("resilience: upstream breaker open")

// Breaker stops calling an upstream after Threshold consecutive transient
// failures, then probes it again once Cooldown has passed. Permanent
// failures such as a 404 do not count.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
}

// NewBreaker creates a closed breaker. Non-positive arguments fall back to
// 5 failures and 30s.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Call runs fn unless the breaker is open. A call cut short by its context
// or by a panic says nothing about the upstream and is not recorded.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (v T, err error) {
	if !b.allow() {
		return v, ErrBreakerOpen
	}
	done := false
	defer func() {
		if !done || ctx.Err() != nil {
			b.abandon()
			return
		}
		b.record(err)
	}()
	v, err = fn(ctx)
	done = true
	return v, err
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.set(BreakerProbing)
		return true
	case BreakerProbing:
		// one probe at a time
		return false
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !IsTransient(err) {
		b.failures = 0
		if b.state != BreakerClosed {
			b.set(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerProbing || b.failures >= b.threshold {
		b.openedAt = b.now()
		b.set(BreakerOpen)
	}
}

// abandon releases an unfinished probe. openedAt is kept, so the next call
// may probe again straight away.
func (b *Breaker) abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerProbing {
		b.set(BreakerOpen)
	}
}

func (b *Breaker) set(s BreakerState) {
	if b.state == s {
		return
	}
	zap.L().Info("resilience: breaker state change",
		zap.String("upstream", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", s),
		zap.Int("failures", b.failures),
	)
	b.state = s
}

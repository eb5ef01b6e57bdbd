// Package resilience provides a circuit breaker for the external
// collaborators the gate depends on, chiefly the control-plane reader.
// A tripped breaker fails fast instead of stalling an evaluation; the
// caller still treats the fast failure as a read failure, so admission
// stays fail-closed.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen is returned when the breaker is open and rejecting calls.
var ErrOpen = errors.New("circuit breaker open")

// Config holds breaker tuning.
type Config struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens.
	FailureThreshold int
	// SuccessThreshold is the number of successes in half-open state
	// required to close again.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
}

// DefaultConfig returns conservative defaults suited to a control plane
// that is polled once per intent.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// Breaker implements a three-state circuit breaker.
type Breaker struct {
	name string
	cfg  Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time

	totalCalls    int64
	totalFailures int64
	totalRejected int64
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{name: name, cfg: cfg, state: StateClosed}
}

// Do runs fn under the breaker. A context already cancelled counts as a
// failure without invoking fn.
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		b.record(err)
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// DoWithResult runs a result-returning fn under breaker b.
func DoWithResult[T any](b *Breaker, ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		b.record(err)
		return zero, err
	}
	v, err := fn()
	b.record(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) >= b.cfg.Cooldown {
			b.transition(StateHalfOpen)
			return nil
		}
		b.totalRejected++
		return ErrOpen
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		switch b.state {
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.transition(StateClosed)
			}
		case StateClosed:
			b.failures = 0
		}
		return
	}

	b.totalFailures++
	b.lastFailure = time.Now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(s State) {
	b.state = s
	b.failures = 0
	b.successes = 0
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Stats is a point-in-time view of breaker counters.
type Stats struct {
	Name          string
	State         State
	TotalCalls    int64
	TotalFailures int64
	TotalRejected int64
}

// Stats returns current counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:          b.name,
		State:         b.state,
		TotalCalls:    b.totalCalls,
		TotalFailures: b.totalFailures,
		TotalRejected: b.totalRejected,
	}
}

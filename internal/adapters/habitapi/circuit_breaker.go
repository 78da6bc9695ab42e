package habitapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"abitudini/gridrange/internal/core/contribution"
)

// ErrCircuitOpen is returned without calling the habit API while the breaker is open.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", contribution.ErrUpstreamUnavailable)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker stops calling the habit API after maxFailures consecutive upstream failures.
// After the cooldown a single probe is let through; its outcome closes or reopens the circuit.
type CircuitBreaker struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Allow reports whether a call may proceed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = breakerHalfOpen
		cb.probing = true
		return nil
	case breakerHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

// Success closes the circuit.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = breakerClosed
	cb.failures = 0
	cb.probing = false
}

// Failure counts an upstream failure. A failed probe reopens the circuit immediately.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == breakerHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = breakerOpen
		cb.openedAt = cb.now()
		cb.probing = false
	}
}

// Release gives back a probe slot without judging the upstream, e.g. after a caller cancellation.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

// State returns closed, open or half-open.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

// Check reports the habit API as unavailable while the circuit is not closed. It never calls
// the upstream, so it can back a health probe.
func (cb *CircuitBreaker) Check(context.Context) error {
	if state := cb.State(); state != breakerClosed.String() {
		return fmt.Errorf("circuit breaker is %s: %w", state, contribution.ErrUpstreamUnavailable)
	}
	return nil
}

// Package resilience guards calls to slow or failing upstreams such as the
// live quote feed.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN" // one trial call may pass after the cooldown
)

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // half-open successes that close it again
	Cooldown         time.Duration // time spent open before a trial call

	// OnStateChange is called outside the lock.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the quote feed defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling an upstream after repeated failures and lets
// a trial call through once the cooldown has passed.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitState
	streak   int // consecutive failures when closed, successes when half-open
	openedAt time.Time
	calls    int64
	failures int64
	rejected int64
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	config.FailureThreshold = max(config.FailureThreshold, 1)
	config.SuccessThreshold = max(config.SuccessThreshold, 1)
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Execute runs fn under the breaker. See Call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn under the breaker and returns its result. When ctx is done
// first, Call returns ctx.Err() without waiting for fn and counts a failure.
func Call[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		cb.record(r.err == nil)
		return r.value, r.err
	case <-ctx.Done():
		cb.record(false)
		return zero, ctx.Err()
	}
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	cb.calls++
	if cb.state != CircuitOpen {
		cb.mu.Unlock()
		return nil
	}
	if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
		cb.rejected++
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	cb.setState(CircuitHalfOpen)
	cb.mu.Unlock()

	cb.notify(CircuitOpen, CircuitHalfOpen)
	return nil
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	from := cb.state
	if !ok {
		cb.failures++
	}
	switch {
	case ok && from == CircuitHalfOpen:
		cb.streak++
		if cb.streak >= cb.config.SuccessThreshold {
			cb.setState(CircuitClosed)
		}
	case ok:
		cb.streak = 0
	case from == CircuitHalfOpen:
		cb.setState(CircuitOpen)
	case from == CircuitClosed:
		cb.streak++
		if cb.streak >= cb.config.FailureThreshold {
			cb.setState(CircuitOpen)
		}
	}
	to := cb.state
	cb.mu.Unlock()

	if from != to {
		cb.notify(from, to)
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(state CircuitState) {
	cb.state = state
	cb.streak = 0
	if state == CircuitOpen {
		cb.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stats := CircuitBreakerStats{
		State:         cb.state,
		TotalRequests: cb.calls,
		TotalFailures: cb.failures,
		TotalRejected: cb.rejected,
	}
	if cb.state == CircuitClosed {
		stats.CurrentFailures = cb.streak
	}
	return stats
}

// CircuitBreakerStats is a snapshot reported by the health check.
type CircuitBreakerStats struct {
	State           CircuitState `json:"state"`
	TotalRequests   int64        `json:"total_requests"`
	TotalFailures   int64        `json:"total_failures"`
	TotalRejected   int64        `json:"total_rejected"`
	CurrentFailures int          `json:"current_failures"`
}

// FailureRate returns failed calls as a percentage of all calls.
func (s CircuitBreakerStats) FailureRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.TotalFailures) / float64(s.TotalRequests) * 100
}

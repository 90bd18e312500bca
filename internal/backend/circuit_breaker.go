package backend

import (
	"context"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	// StateClosed indicates the backend is queried normally
	StateClosed CircuitState = iota
	// StateOpen indicates the backend is skipped
	StateOpen
	// StateHalfOpen indicates the next query decides whether the backend recovered
	StateHalfOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops querying a backend after repeated failures and
// retries it once the reset timeout elapsed
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	now              func() time.Time
	mu               sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker with the given threshold and reset timeout
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Call runs fn unless the circuit is open. A cancelled context is not
// counted as a backend failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			cb.recordFailureLocked()
		}
		return err
	}

	cb.recordSuccessLocked()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	return cb.state != StateOpen
}

// refreshLocked moves an open circuit to half-open once the reset timeout elapsed (must hold lock)
func (cb *CircuitBreaker) refreshLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailureTime) >= cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.failures = 0
	}
}

// recordSuccessLocked records a successful query (must hold lock)
func (cb *CircuitBreaker) recordSuccessLocked() {
	cb.failures = 0
	cb.state = StateClosed
}

// recordFailureLocked records a failed query (must hold lock)
func (cb *CircuitBreaker) recordFailureLocked() {
	cb.failures++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	return cb.state
}

// Failures returns the current failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
}

// IsOpen returns true if the backend is currently skipped
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

package reliability

import (
	"context"
	"sync"
	"time"
)

// circuitState is the breaker's tristate machine. The zero value is Closed
// with no recorded failures.
type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker guards a call behind Closed/Open/HalfOpen states. State
// transitions are serialized under mu; the wrapped call itself runs outside
// the lock.
type CircuitBreaker struct {
	mu                 sync.Mutex
	state              circuitState
	failures           int
	successes          int
	openedAt           time.Time
	failureThreshold   int
	openDuration       time.Duration
	halfOpenSuccesses  int
}

// NewCircuitBreaker builds a breaker starting Closed. failureThreshold and
// halfOpenSuccesses are clamped to at least 1.
func NewCircuitBreaker(failureThreshold int, openDuration time.Duration, halfOpenSuccesses int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if halfOpenSuccesses < 1 {
		halfOpenSuccesses = 1
	}
	return &CircuitBreaker{
		failureThreshold:  failureThreshold,
		openDuration:      openDuration,
		halfOpenSuccesses: halfOpenSuccesses,
	}
}

// Call runs f unless the breaker is open, recording the outcome against the
// state machine. It never retries on its own.
func (cb *CircuitBreaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := f(ctx)
	cb.after(err == nil)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen {
		if time.Since(cb.openedAt) < cb.openDuration {
			return ErrCircuitOpen
		}
		cb.state = stateHalfOpen
		cb.successes = 0
	}
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		if success {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = stateOpen
			cb.openedAt = time.Now()
		}
	case stateHalfOpen:
		if success {
			cb.successes++
			if cb.successes >= cb.halfOpenSuccesses {
				cb.state = stateClosed
				cb.failures = 0
			}
			return
		}
		cb.state = stateOpen
		cb.openedAt = time.Now()
	case stateOpen:
		// A call that slipped through right at the open/half-open boundary;
		// leave state as-is, the next before() will re-evaluate it.
	}
}

// State reports the breaker's current state as a string, for metrics and
// logging ("closed", "open", "half_open").
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	breakerErrorThreshold = 0.5
	breakerMinRequests    = 10
	breakerOpenTimeout    = 30 * time.Second
	breakerHalfOpenMax    = 3
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// ErrCircuitOpen is returned while the breaker is rejecting calls outright.
// The notifier treats it as a delivery failure for the affected user.
var ErrCircuitOpen = errors.New("circuit breaker is open")

var errHalfOpenSaturated = errors.New("too many probe requests in half-open state")

// CircuitBreaker protects the notification transport: once Telegram delivery
// starts failing at a high rate, sends fail fast instead of stalling every
// dispatcher cycle on a dead API.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	requests    int
	lastFailure time.Time
}

func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{state: BreakerClosed}
}

// Call runs fn unless the breaker is open, recording the outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

// State reports the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen {
		if time.Since(cb.lastFailure) < breakerOpenTimeout {
			return ErrCircuitOpen
		}

		cb.state = BreakerHalfOpen
		cb.resetCountersLocked()
	}

	if cb.state == BreakerHalfOpen && cb.requests >= breakerHalfOpenMax {
		return errHalfOpenSaturated
	}

	return nil
}

func (cb *CircuitBreaker) record(callErr error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++

	if callErr != nil {
		cb.failures++

		if cb.state == BreakerHalfOpen {
			cb.tripLocked()
			return
		}

		if cb.requests >= breakerMinRequests {
			if rate := float64(cb.failures) / float64(cb.requests); rate >= breakerErrorThreshold {
				cb.tripLocked()
			}
		}

		return
	}

	cb.successes++
	if cb.state == BreakerHalfOpen && cb.successes >= breakerHalfOpenMax {
		cb.state = BreakerClosed
		cb.resetCountersLocked()
	}
}

func (cb *CircuitBreaker) tripLocked() {
	cb.state = BreakerOpen
	cb.lastFailure = time.Now()
	cb.resetCountersLocked()
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
}

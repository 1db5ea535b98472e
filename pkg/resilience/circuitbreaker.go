package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"talking-pet/companion/pkg/clock"
	apperrors "talking-pet/companion/pkg/errors"
	"talking-pet/companion/pkg/logger"
)

// CircuitBreakerState represents the current state of a circuit breaker
type CircuitBreakerState string

const (
	// StateClosed means calls pass through
	StateClosed CircuitBreakerState = "closed"
	// StateOpen means calls are short-circuited until the cooldown lapses
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen means a limited number of trial calls are let through
	StateHalfOpen CircuitBreakerState = "half-open"
)

// ErrCircuitOpen is returned by Execute while the breaker is open
var ErrCircuitOpen = apperrors.NewUnavailableError("circuit open")

// CircuitBreaker short-circuits calls to a dependency that keeps failing.
// It never retries; a rejected call fails fast with ErrCircuitOpen.
type CircuitBreaker struct {
	name             string
	clock            clock.Clock
	failureThreshold uint
	successThreshold uint
	cooldown         time.Duration
	log              *logger.Logger

	mutex           sync.Mutex
	state           CircuitBreakerState
	failureCount    uint
	successCount    uint
	nextAttemptTime time.Time

	totalRequests uint64
	totalFailures uint64
	rejected      uint64
	openCount     uint64
}

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	Cooldown         time.Duration
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         60 * time.Second,
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, c clock.Clock, log *logger.Logger) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		name:             config.Name,
		clock:            c,
		failureThreshold: config.FailureThreshold,
		successThreshold: config.SuccessThreshold,
		cooldown:         config.Cooldown,
		log:              log,
		state:            StateClosed,
	}
}

// Execute runs fn unless the circuit is open. A call abandoned with
// context.Canceled says nothing about the dependency and is counted as
// neither a success nor a failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allowRequest() {
		cb.log.Debug("Circuit breaker rejected call", "name", cb.name)
		return ErrCircuitOpen
	}

	if err := fn(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.clock.Now().Before(cb.nextAttemptTime) {
			cb.rejected++
			return false
		}
		cb.toHalfOpen()
	case StateHalfOpen:
		if cb.successCount >= cb.successThreshold {
			cb.rejected++
			return false
		}
	}

	cb.totalRequests++
	return true
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.toClosed()
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.totalFailures++

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openCount++
	cb.nextAttemptTime = cb.clock.Now().Add(cb.cooldown)

	cb.log.Warn("Circuit breaker opened",
		"name", cb.name,
		"failures", cb.failureCount,
		"next_attempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successCount = 0

	cb.log.Info("Circuit breaker half-open", "name", cb.name)
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0

	cb.log.Info("Circuit breaker closed", "name", cb.name)
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.state
}

// Metrics returns counters for the health endpoint
func (cb *CircuitBreaker) Metrics() map[string]any {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return map[string]any{
		"name":           cb.name,
		"state":          string(cb.state),
		"total_requests": cb.totalRequests,
		"total_failures": cb.totalFailures,
		"rejected":       cb.rejected,
		"open_count":     cb.openCount,
	}
}

// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed   CircuitBreakerState = iota // Normal operation
	StateOpen                                // Failing fast
	StateHalfOpen                            // Testing if service recovered
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int           // Failures before opening
	SuccessThreshold int           // Successes in half-open before closing
	Timeout          time.Duration // Wait before moving from open to half-open
	MaxRequests      int           // Max concurrent trial requests in half-open
	IsFailure        func(error) bool
	OnStateChange    func(name string, from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for remote recognizers.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
		IsFailure: func(err error) bool {
			if err == nil {
				return false
			}
			// Bad input from one caller must not trip the breaker for everyone.
			return ClassifyError(err).Retryable
		},
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	config CircuitBreakerConfig
	mu     sync.Mutex

	state           CircuitBreakerState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	requestCount    int
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		since := time.Since(cb.lastFailureTime)
		if since >= cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.requestCount = 1
			return nil
		}
		return &CircuitBreakerError{
			Name:  cb.config.Name,
			State: cb.state,
			Message: fmt.Sprintf("circuit breaker '%s' is OPEN (failed %d times, last failure %v ago)",
				cb.config.Name, cb.failureCount, since.Round(time.Second)),
		}

	case StateHalfOpen:
		if cb.requestCount >= cb.config.MaxRequests {
			return &CircuitBreakerError{
				Name:    cb.config.Name,
				State:   cb.state,
				Message: fmt.Sprintf("circuit breaker '%s' is HALF_OPEN and at max requests (%d)", cb.config.Name, cb.config.MaxRequests),
			}
		}
		cb.requestCount++
		return nil

	default:
		return fmt.Errorf("unknown circuit breaker state: %v", cb.state)
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.config.IsFailure(err) {
		cb.failureCount++
		cb.lastFailureTime = time.Now()
		switch cb.state {
		case StateClosed:
			if cb.failureCount >= cb.config.FailureThreshold {
				cb.setState(StateOpen)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
			cb.requestCount = 0
			cb.successCount = 0
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		cb.requestCount--
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
			cb.requestCount = 0
		}
	}
}

func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, oldState, newState)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerError is returned when circuit breaker prevents execution
type CircuitBreakerError struct {
	Name    string
	State   CircuitBreakerState
	Message string
}

func (e *CircuitBreakerError) Error() string {
	return e.Message
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}

package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

// CircuitBreakerError is returned when the breaker rejects a request
type CircuitBreakerError struct {
	CircuitName string
	State       State
	Message     string
	Timestamp   time.Time
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s: %s", e.CircuitName, e.State.String(), e.Message)
}

// NewCircuitBreakerOpenError creates an error for when circuit is open
func NewCircuitBreakerOpenError(name string, state State) *CircuitBreakerError {
	return &CircuitBreakerError{
		CircuitName: name,
		State:       state,
		Message:     "request rejected",
		Timestamp:   time.Now(),
	}
}

// IsCircuitBreakerError checks if an error is, or wraps, a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}

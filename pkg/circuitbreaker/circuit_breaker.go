package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a collaborator that keeps failing and lets
// callers fall back straight away until the cool-down expires.
type CircuitBreaker struct {
	name        string
	logger      *logrus.Entry
	config      *Config
	state       State
	failures    int64
	nextAttempt time.Time
	mutex       sync.Mutex

	stats Statistics

	onStateChange func(name string, from State, to State)
}

// Config holds circuit breaker configuration
type Config struct {
	// Consecutive failures before opening the circuit
	FailureThreshold int64 `json:"failure_threshold"`

	// Consecutive successes in half-open before closing again
	SuccessThreshold int64 `json:"success_threshold"`

	// Cool-down before a half-open probe is allowed
	Timeout time.Duration `json:"timeout"`

	// Upper bound for the cool-down when backing off
	MaxTimeout time.Duration `json:"max_timeout"`

	// Applied when the caller's context carries no deadline
	RequestTimeout time.Duration `json:"request_timeout"`

	// Double the cool-down for every failure beyond the threshold
	ExponentialBackoff bool `json:"exponential_backoff"`

	// Failure rate (0.0-1.0) within TimeWindow that also opens the circuit
	FailureRateThreshold float64 `json:"failure_rate_threshold"`

	// Minimum requests within TimeWindow before the rate is considered
	MinRequestThreshold int64 `json:"min_request_threshold"`

	TimeWindow time.Duration `json:"time_window"`
}

// DefaultConfig returns default circuit breaker configuration
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:     5,
		SuccessThreshold:     2,
		Timeout:              60 * time.Second,
		MaxTimeout:           300 * time.Second,
		RequestTimeout:       30 * time.Second,
		ExponentialBackoff:   true,
		FailureRateThreshold: 0.5,
		MinRequestThreshold:  10,
		TimeWindow:           60 * time.Second,
	}
}

// Statistics tracks circuit breaker activity
type Statistics struct {
	TotalRequests        int64     `json:"total_requests"`
	SuccessfulRequests   int64     `json:"successful_requests"`
	FailedRequests       int64     `json:"failed_requests"`
	RejectedRequests     int64     `json:"rejected_requests"`
	ConsecutiveSuccesses int64     `json:"consecutive_successes"`
	LastFailureTime      time.Time `json:"last_failure_time"`
	LastSuccessTime      time.Time `json:"last_success_time"`
	StateTransitions     int64     `json:"state_transitions"`

	window []requestRecord
}

type requestRecord struct {
	timestamp time.Time
	success   bool
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config *Config, logger *logrus.Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}

	return &CircuitBreaker{
		name:   name,
		logger: logger.WithField("circuit_breaker", name),
		config: config,
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if state, ok := cb.allowRequest(); !ok {
		return NewCircuitBreakerOpenError(cb.name, state)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && cb.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cb.config.RequestTimeout)
		defer cancel()
	}

	if err := fn(ctx); err != nil {
		cb.recordFailure(err)
		return err
	}

	cb.recordSuccess()
	return nil
}

// ExecuteWithFallback runs fn and calls fallback when the circuit rejects the request
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(ctx context.Context) error, fallback func(ctx context.Context) error) error {
	err := cb.Execute(ctx, fn)
	if err != nil && IsCircuitBreakerError(err) && fallback != nil {
		cb.logger.WithError(err).Debug("Circuit breaker open, executing fallback")
		return fallback(ctx)
	}
	return err
}

func (cb *CircuitBreaker) allowRequest() (State, bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return cb.state, true
	case StateOpen:
		if time.Now().After(cb.nextAttempt) {
			cb.setState(StateHalfOpen)
			return cb.state, true
		}
	}
	cb.stats.RejectedRequests++
	return cb.state, false
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	cb.failures = 0
	cb.stats.TotalRequests++
	cb.stats.SuccessfulRequests++
	cb.stats.ConsecutiveSuccesses++
	cb.stats.LastSuccessTime = now
	cb.addWindowRecord(now, true)

	if cb.state == StateHalfOpen && cb.stats.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	cb.failures++
	cb.stats.TotalRequests++
	cb.stats.FailedRequests++
	cb.stats.ConsecutiveSuccesses = 0
	cb.stats.LastFailureTime = now
	cb.addWindowRecord(now, false)

	// A failed probe reopens immediately
	if cb.state == StateHalfOpen || cb.shouldTrip() {
		cb.setState(StateOpen)
	}

	cb.logger.WithError(err).WithFields(logrus.Fields{
		"failures": cb.failures,
		"state":    cb.state.String(),
	}).Debug("Circuit breaker recorded failure")
}

func (cb *CircuitBreaker) shouldTrip() bool {
	if cb.failures >= cb.config.FailureThreshold {
		return true
	}

	if int64(len(cb.stats.window)) >= cb.config.MinRequestThreshold && cb.config.MinRequestThreshold > 0 {
		var failed int64
		for _, r := range cb.stats.window {
			if !r.success {
				failed++
			}
		}
		if float64(failed)/float64(len(cb.stats.window)) >= cb.config.FailureRateThreshold {
			return true
		}
	}
	return false
}

func (cb *CircuitBreaker) addWindowRecord(timestamp time.Time, success bool) {
	windowStart := timestamp.Add(-cb.config.TimeWindow)
	kept := cb.stats.window[:0]
	for _, r := range cb.stats.window {
		if r.timestamp.After(windowStart) {
			kept = append(kept, r)
		}
	}
	cb.stats.window = append(kept, requestRecord{timestamp: timestamp, success: success})
}

// setState must be called with the mutex held
func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState

	switch newState {
	case StateOpen:
		timeout := cb.config.Timeout
		if cb.config.ExponentialBackoff && cb.failures > cb.config.FailureThreshold {
			shift := cb.failures - cb.config.FailureThreshold
			if shift > 10 {
				shift = 10
			}
			timeout = cb.config.Timeout * time.Duration(int64(1)<<uint(shift))
			if cb.config.MaxTimeout > 0 && timeout > cb.config.MaxTimeout {
				timeout = cb.config.MaxTimeout
			}
		}
		cb.nextAttempt = time.Now().Add(timeout)
	case StateClosed:
		cb.failures = 0
		cb.nextAttempt = time.Time{}
	case StateHalfOpen:
		cb.stats.ConsecutiveSuccesses = 0
	}

	cb.stats.StateTransitions++

	cb.logger.WithFields(logrus.Fields{
		"from_state": oldState.String(),
		"to_state":   newState.String(),
		"failures":   cb.failures,
	}).Info("Circuit breaker state changed")

	if cb.onStateChange != nil {
		go cb.onStateChange(cb.name, oldState, newState)
	}
}

// GetState returns the current circuit breaker state
func (cb *CircuitBreaker) GetState() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// GetStatistics returns a copy of the statistics
func (cb *CircuitBreaker) GetStatistics() Statistics {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	stats := cb.stats
	stats.window = nil
	return stats
}

// Reset returns the breaker to closed with cleared statistics
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.setState(StateClosed)
	cb.failures = 0
	cb.nextAttempt = time.Time{}
	cb.stats = Statistics{}

	cb.logger.Info("Circuit breaker reset")
}

// SetStateChangeCallback sets a callback for state changes
func (cb *CircuitBreaker) SetStateChangeCallback(callback func(name string, from State, to State)) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.onStateChange = callback
}

// GetName returns the circuit breaker name
func (cb *CircuitBreaker) GetName() string {
	return cb.name
}

// IsOpen returns true if the circuit is open
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.GetState() == StateOpen
}

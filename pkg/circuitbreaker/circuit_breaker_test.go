package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func failing(context.Context) error   { return errors.New("boom") }
func succeeding(context.Context) error { return nil }

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("stt", &Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
		RequestTimeout:   time.Second,
		TimeWindow:       time.Minute,
	}, testLogger())

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), failing)
		require.Error(t, err)
		assert.False(t, IsCircuitBreakerError(err))
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsCircuitBreakerError(err))
	assert.True(t, IsCircuitBreakerError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, called)

	stats := cb.GetStatistics()
	assert.Equal(t, int64(3), stats.FailedRequests)
	assert.Equal(t, int64(1), stats.RejectedRequests)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("delivery", &Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          10 * time.Millisecond,
		RequestTimeout:   time.Second,
		TimeWindow:       time.Minute,
	}, testLogger())

	require.Error(t, cb.Execute(context.Background(), failing))
	assert.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Execute(context.Background(), succeeding))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("probe", &Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
		RequestTimeout:   time.Second,
		TimeWindow:       time.Minute,
	}, testLogger())

	require.Error(t, cb.Execute(context.Background(), failing))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Execute(context.Background(), failing))
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestExecuteWithFallback(t *testing.T) {
	cb := NewCircuitBreaker("fallback", &Config{
		FailureThreshold: 1,
		Timeout:          time.Hour,
		RequestTimeout:   time.Second,
		TimeWindow:       time.Minute,
	}, testLogger())

	require.Error(t, cb.Execute(context.Background(), failing))

	fallbackCalled := false
	err := cb.ExecuteWithFallback(context.Background(), succeeding, func(context.Context) error {
		fallbackCalled = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, fallbackCalled)

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, int64(0), cb.GetStatistics().TotalRequests)
}

func TestManagerReusesBreakers(t *testing.T) {
	m := NewManager(testLogger(), nil)

	a := m.GetCircuitBreaker("stt", STTConfig())
	b := m.GetCircuitBreaker("stt", nil)
	assert.Same(t, a, b)

	m.GetCircuitBreaker("delivery", DeliveryConfig())
	assert.Equal(t, []string{"delivery", "stt"}, m.GetBreakerNames())
	assert.Len(t, m.GetAllStatistics(), 2)
}

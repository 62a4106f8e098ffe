package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestLimiter_Allow_WithinBurst(t *testing.T) {
	limiter := NewLimiter(10, 5, newTestLogger())
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow("campaign-1"), "call %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow("campaign-1"), "6th call should be paced")
}

func TestLimiter_Allow_TokenRefill(t *testing.T) {
	limiter := NewLimiter(10, 5, newTestLogger())
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow("campaign-1"))
	}
	assert.False(t, limiter.Allow("campaign-1"))

	// 100ms = 1 token at 10/sec
	time.Sleep(150 * time.Millisecond)

	assert.True(t, limiter.Allow("campaign-1"))
	assert.False(t, limiter.Allow("campaign-1"))
}

func TestLimiter_Allow_DifferentCampaigns(t *testing.T) {
	limiter := NewLimiter(10, 3, newTestLogger())
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("campaign-1"))
	}
	assert.False(t, limiter.Allow("campaign-1"))

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("campaign-2"))
	}
	assert.Equal(t, 2, limiter.GetClientCount())
}

func TestLimiter_WaitPacesCalls(t *testing.T) {
	limiter := NewLimiter(20, 1, newTestLogger())
	defer limiter.Stop()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(context.Background(), "campaign-1"))
	}
	// First token is immediate, the next two take 50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0.5, 1, newTestLogger())
	defer limiter.Stop()

	require.NoError(t, limiter.Wait(context.Background(), "campaign-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(ctx, "campaign-1"), context.DeadlineExceeded)
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 0, newTestLogger())
	defer limiter.Stop()

	assert.False(t, limiter.Enabled())
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow("campaign-1"))
	}
	assert.NoError(t, limiter.Wait(context.Background(), "campaign-1"))

	var nilLimiter *Limiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "campaign-1"))
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := NewLimiter(1, 10, newTestLogger())
	defer limiter.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("campaign-1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, allowed, 10)
	assert.LessOrEqual(t, allowed, 11)
}

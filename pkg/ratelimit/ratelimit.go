package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Limiter paces calls with one token bucket per key, usually a campaign ID
type Limiter struct {
	rate       float64 // tokens per second
	burst      int
	clients    map[string]*bucket
	mu         sync.Mutex
	logger     *logrus.Entry
	cleanupTTL time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewLimiter creates a limiter. A non-positive rate disables limiting.
func NewLimiter(rate float64, burst int, logger *logrus.Logger) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		rate:       rate,
		burst:      burst,
		clients:    make(map[string]*bucket),
		logger:     logger.WithField("component", "rate_limiter"),
		cleanupTTL: 10 * time.Minute,
		stopChan:   make(chan struct{}),
	}

	if rate > 0 {
		go l.cleanup()
	}
	return l
}

// Enabled reports whether the limiter restricts anything
func (l *Limiter) Enabled() bool {
	return l != nil && l.rate > 0
}

// Allow takes a token for key if one is available
func (l *Limiter) Allow(key string) bool {
	return l.reserve(key, time.Now()) == 0
}

// Wait blocks until key has a token or ctx ends
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for {
		delay := l.reserve(key, time.Now())
		if delay == 0 {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve takes a token and returns 0, or returns how long until one refills
func (l *Limiter) reserve(key string, now time.Time) time.Duration {
	if !l.Enabled() {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.clients[key]
	if !exists {
		b = &bucket{tokens: float64(l.burst), lastUpdate: now}
		l.clients[key] = b
	}

	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.tokens = math.Min(b.tokens+elapsed*l.rate, float64(l.burst))
	b.lastUpdate = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}

	missing := 1 - b.tokens
	return time.Duration(missing / l.rate * float64(time.Second))
}

// GetTokens returns the current token count for key
func (l *Limiter) GetTokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.clients[key]
	if !exists {
		return float64(l.burst)
	}
	return math.Min(b.tokens+time.Since(b.lastUpdate).Seconds()*l.rate, float64(l.burst))
}

// GetClientCount returns the number of tracked keys
func (l *Limiter) GetClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop ends the cleanup goroutine
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
}

// cleanup periodically drops keys that have been idle for cleanupTTL
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			removed := 0
			for key, b := range l.clients {
				if now.Sub(b.lastUpdate) > l.cleanupTTL {
					delete(l.clients, key)
					removed++
				}
			}
			l.mu.Unlock()
			if removed > 0 {
				l.logger.WithField("removed", removed).Debug("Dropped idle rate limit buckets")
			}
		case <-l.stopChan:
			return
		}
	}
}

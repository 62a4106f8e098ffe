package messaging

import (
	"context"
	"time"

	"amd-server/pkg/circuitbreaker"
	"amd-server/pkg/errors"
	"amd-server/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// RetryConfig bounds delivery attempts
type RetryConfig struct {
	MaxAttempts       int
	AttemptTimeout    time.Duration
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	DeadLetter        bool
}

// DefaultRetryConfig returns three attempts of two seconds with 200ms doubling backoff
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		AttemptTimeout:    2 * time.Second,
		InitialBackoff:    200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
		DeadLetter:        true,
	}
}

// RetryingChannel wraps a DeliveryChannel with per-attempt timeouts,
// exponential backoff and an optional circuit breaker.
type RetryingChannel struct {
	logger  *logrus.Entry
	inner   DeliveryChannel
	breaker *circuitbreaker.CircuitBreaker
	config  RetryConfig
}

// NewRetryingChannel wraps inner. A nil breaker disables circuit breaking.
func NewRetryingChannel(logger *logrus.Logger, inner DeliveryChannel, breaker *circuitbreaker.CircuitBreaker, config RetryConfig) *RetryingChannel {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 1
	}
	return &RetryingChannel{
		logger:  logger.WithField("component", "delivery"),
		inner:   inner,
		breaker: breaker,
		config:  config,
	}
}

// Name implements DeliveryChannel
func (r *RetryingChannel) Name() string {
	return r.inner.Name()
}

// Deliver implements DeliveryChannel
func (r *RetryingChannel) Deliver(ctx context.Context, msg Message) error {
	_, err := r.Send(ctx, msg)
	return err
}

// Send delivers msg and reports how many attempts were made. On failure the
// error wraps ErrDeliveryFailed.
func (r *RetryingChannel) Send(ctx context.Context, msg Message) (int, error) {
	logger := r.logger.WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"campaign_id": msg.CampaignID,
		"channel":     r.inner.Name(),
	})

	var lastErr error
	attempts := 0
	backoff := r.config.InitialBackoff

	for attempts < r.config.MaxAttempts {
		attempts++
		lastErr = r.attempt(ctx, msg)
		if lastErr == nil {
			metrics.RecordDeliveryAttempt(r.inner.Name(), "success")
			metrics.RecordDelivery(r.inner.Name(), true, attempts)
			logger.WithField("attempts", attempts).Debug("Message delivered")
			return attempts, nil
		}

		metrics.RecordDeliveryAttempt(r.inner.Name(), "failure")
		logger.WithError(lastErr).WithField("attempt", attempts).Warn("Message delivery attempt failed")

		if circuitbreaker.IsCircuitBreakerError(lastErr) || attempts >= r.config.MaxAttempts {
			break
		}
		if !sleepContext(ctx, backoff) {
			lastErr = ctx.Err()
			break
		}
		backoff = r.nextBackoff(backoff)
	}

	metrics.RecordDelivery(r.inner.Name(), false, attempts)
	err := errors.NewDeliveryFailed(lastErr, attempts)
	logger.WithError(err).Error("Message delivery failed")
	r.deadLetter(ctx, msg, err, logger)
	return attempts, err
}

func (r *RetryingChannel) attempt(ctx context.Context, msg Message) error {
	deliver := func(ctx context.Context) error {
		if r.config.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.config.AttemptTimeout)
			defer cancel()
		}
		return r.inner.Deliver(ctx, msg)
	}

	if r.breaker != nil {
		return r.breaker.Execute(ctx, deliver)
	}
	return deliver(ctx)
}

func (r *RetryingChannel) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * r.config.BackoffMultiplier)
	if r.config.MaxBackoff > 0 && next > r.config.MaxBackoff {
		next = r.config.MaxBackoff
	}
	return next
}

func (r *RetryingChannel) deadLetter(ctx context.Context, msg Message, cause error, logger *logrus.Entry) {
	if !r.config.DeadLetter {
		return
	}
	publisher, ok := r.inner.(DeadLetterPublisher)
	if !ok {
		return
	}

	timeout := r.config.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultRetryConfig().AttemptTimeout
	}
	dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := publisher.PublishToDeadLetterQueue(dlqCtx, msg, cause); err != nil {
		logger.WithError(err).Warn("Failed to dead-letter undelivered message")
	}
}

// sleepContext waits for d and reports false when ctx ends first
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package stt

import (
	"context"
	"time"

	"amd-server/pkg/circuitbreaker"
	"amd-server/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// FallbackTranscriber bounds a primary transcriber with a timeout and a
// circuit breaker, and answers with the placeholder whenever it fails.
type FallbackTranscriber struct {
	logger      *logrus.Entry
	primary     Transcriber
	breaker     *circuitbreaker.CircuitBreaker
	timeout     time.Duration
	placeholder Transcriber
}

// NewFallbackTranscriber wraps primary. A nil breaker disables circuit breaking;
// a zero timeout relies on the caller's deadline.
func NewFallbackTranscriber(logger *logrus.Logger, primary Transcriber, breaker *circuitbreaker.CircuitBreaker, timeout time.Duration) *FallbackTranscriber {
	return &FallbackTranscriber{
		logger:      logger.WithField("component", "stt_fallback"),
		primary:     primary,
		breaker:     breaker,
		timeout:     timeout,
		placeholder: NewPlaceholderTranscriber(),
	}
}

// Name implements Transcriber
func (f *FallbackTranscriber) Name() string {
	if f.primary == nil {
		return "placeholder"
	}
	return f.primary.Name()
}

// Transcribe never fails: STT errors, timeouts and open circuits all yield the placeholder
func (f *FallbackTranscriber) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	if f.primary == nil {
		return f.usePlaceholder(ctx, req, ErrNoProviderAvailable)
	}

	callCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var transcript *Transcript
	call := func(ctx context.Context) error {
		t, err := f.primary.Transcribe(ctx, req)
		if err != nil {
			return err
		}
		transcript = t
		return nil
	}

	var err error
	if f.breaker != nil {
		err = f.breaker.Execute(callCtx, call)
	} else {
		err = call(callCtx)
	}
	if err != nil {
		return f.usePlaceholder(ctx, req, err)
	}

	if transcript.Source == "" {
		transcript.Source = SourceSTT
	}
	return transcript, nil
}

func (f *FallbackTranscriber) usePlaceholder(ctx context.Context, req Request, cause error) (*Transcript, error) {
	f.logger.WithError(cause).WithFields(logrus.Fields{
		"call_id":  req.CallID,
		"provider": f.Name(),
	}).Debug("Speech-to-text unavailable, using placeholder transcript")
	metrics.RecordSTTRequest(f.Name(), "fallback")
	return f.placeholder.Transcribe(ctx, req)
}

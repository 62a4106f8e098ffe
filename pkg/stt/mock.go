package stt

import (
	"context"
	"sync"
	"time"
)

// MockProvider is a scripted transcriber for tests and offline runs
type MockProvider struct {
	mutex sync.Mutex
	text  string
	err   error
	delay time.Duration
	calls int
}

// NewMockProvider returns a provider that answers with text
func NewMockProvider(text string) *MockProvider {
	return &MockProvider{text: text}
}

// WithError makes every call fail
func (p *MockProvider) WithError(err error) *MockProvider {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.err = err
	return p
}

// WithDelay makes every call wait before answering, honouring cancellation
func (p *MockProvider) WithDelay(d time.Duration) *MockProvider {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.delay = d
	return p
}

// Calls returns how many times Transcribe was invoked
func (p *MockProvider) Calls() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.calls
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Transcribe implements Transcriber
func (p *MockProvider) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	p.mutex.Lock()
	p.calls++
	text, err, delay := p.text, p.err, p.delay
	p.mutex.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &Transcript{
		Text:       text,
		Confidence: 0.9,
		Provider:   p.Name(),
		Source:     SourceSTT,
	}, nil
}

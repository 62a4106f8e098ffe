package stt

import (
	"context"
	"sort"
	"sync"
	"time"

	"amd-server/pkg/media"
	"amd-server/pkg/metrics"

	"github.com/sirupsen/logrus"
)

// Transcript sources
const (
	SourceSTT         = "stt"
	SourcePlaceholder = "placeholder"
)

// Request is a best-effort transcription request for the opening seconds of a call
type Request struct {
	CallID   string
	Audio    *media.AudioBuffer
	Language string
	// Duration (s) and RMS let a placeholder stand in without touching the audio
	Duration float64
	RMS      float64
}

// Transcript is the text of a greeting
type Transcript struct {
	Text       string  `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence"`
	Provider   string  `json:"provider"`
	Source     string  `json:"source"`
}

// Transcriber turns a greeting into text. Implementations may fail; callers
// are expected to tolerate a missing transcript.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
}

// ProviderManager keeps the registered transcribers and a default
type ProviderManager struct {
	logger          *logrus.Entry
	mutex           sync.RWMutex
	providers       map[string]Transcriber
	defaultProvider string
}

// NewProviderManager creates a new provider manager
func NewProviderManager(logger *logrus.Logger, defaultProvider string) *ProviderManager {
	return &ProviderManager{
		logger:          logger.WithField("component", "stt_manager"),
		providers:       make(map[string]Transcriber),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider adds a transcriber under its name
func (m *ProviderManager) RegisterProvider(provider Transcriber) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.providers[provider.Name()] = provider
	m.logger.WithField("provider", provider.Name()).Info("Registered speech-to-text provider")
}

// GetProvider returns a provider by name
func (m *ProviderManager) GetProvider(name string) (Transcriber, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	provider, exists := m.providers[name]
	return provider, exists
}

// GetDefaultProvider returns the default provider
func (m *ProviderManager) GetDefaultProvider() (Transcriber, bool) {
	return m.GetProvider(m.defaultProvider)
}

// Names returns the registered provider names, sorted
func (m *ProviderManager) Names() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name implements Transcriber
func (m *ProviderManager) Name() string {
	return "manager"
}

// Transcribe routes the request to the default provider
func (m *ProviderManager) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	provider, exists := m.GetDefaultProvider()
	if !exists {
		return nil, ErrNoProviderAvailable
	}

	startTime := time.Now()
	done := metrics.ObserveSTTLatency(provider.Name())
	transcript, err := provider.Transcribe(ctx, req)
	done()

	fields := logrus.Fields{
		"call_id":  req.CallID,
		"provider": provider.Name(),
		"latency":  time.Since(startTime).Milliseconds(),
	}
	if err != nil {
		metrics.RecordSTTRequest(provider.Name(), "error")
		m.logger.WithFields(fields).WithError(err).Warn("Transcription failed")
		return nil, err
	}

	metrics.RecordSTTRequest(provider.Name(), "success")
	m.logger.WithFields(fields).Debug("Transcription completed")
	return transcript, nil
}

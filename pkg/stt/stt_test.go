package stt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"amd-server/pkg/circuitbreaker"
	"amd-server/pkg/media"
	"amd-server/pkg/version"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testRequest() Request {
	return Request{
		CallID:   "call-1",
		Audio:    media.NewAudioBuffer(make([]float64, 800), 8000),
		Language: "ml",
		Duration: 2.0,
		RMS:      0.2,
	}
}

func TestPlaceholderTextBuckets(t *testing.T) {
	testCases := []struct {
		name     string
		duration float64
		rms      float64
		expected string
	}{
		{"silence", 3, 0, ""},
		{"no audio", 0, 0.5, ""},
		{"short quiet", 1, 0.05, "hello"},
		{"short loud", 1, 0.3, "ഹലോ, ആരാ"},
		{"medium loud", 2, 0.3, "hello, entha parayu"},
		{"long loud", 6, 0.3, "hi, you have reached my voicemail. please leave a message after the beep"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, PlaceholderText(tc.duration, tc.rms))
		})
	}

	// Deterministic for equal inputs
	assert.Equal(t, PlaceholderText(2.5, 0.05), PlaceholderText(2.5, 0.05))
}

func TestDeepgramProviderTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.Equal(t, version.UserAgent(), r.Header.Get("User-Agent"))
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		assert.Equal(t, "ml", r.URL.Query().Get("language"))

		resp := map[string]interface{}{
			"results": map[string]interface{}{
				"channels": []interface{}{
					map[string]interface{}{
						"alternatives": []interface{}{
							map[string]interface{}{"transcript": "namaskaram", "confidence": 0.87},
						},
					},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	provider := NewDeepgramProvider(testLogger(), DeepgramConfig{APIKey: "secret", APIURL: server.URL})
	require.NoError(t, provider.Initialize())

	transcript, err := provider.Transcribe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "namaskaram", transcript.Text)
	assert.Equal(t, "ml", transcript.Language)
	assert.Equal(t, SourceSTT, transcript.Source)
	assert.InDelta(t, 0.87, transcript.Confidence, 1e-9)
}

func TestDeepgramProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider := NewDeepgramProvider(testLogger(), DeepgramConfig{APIURL: server.URL})
	assert.ErrorIs(t, provider.Initialize(), ErrInitializationFailed)

	_, err := provider.Transcribe(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrTranscriptionFailed)

	_, err = provider.Transcribe(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestFallbackTranscriberUsesPrimary(t *testing.T) {
	primary := NewMockProvider("hello")
	f := NewFallbackTranscriber(testLogger(), primary, nil, time.Second)

	transcript, err := f.Transcribe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "hello", transcript.Text)
	assert.Equal(t, SourceSTT, transcript.Source)
}

func TestFallbackTranscriberOnError(t *testing.T) {
	primary := NewMockProvider("").WithError(errors.New("service down"))
	f := NewFallbackTranscriber(testLogger(), primary, nil, time.Second)

	req := testRequest()
	transcript, err := f.Transcribe(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourcePlaceholder, transcript.Source)
	assert.Equal(t, PlaceholderText(req.Duration, req.RMS), transcript.Text)
}

func TestFallbackTranscriberOnTimeout(t *testing.T) {
	primary := NewMockProvider("too late").WithDelay(time.Second)
	f := NewFallbackTranscriber(testLogger(), primary, nil, 20*time.Millisecond)

	start := time.Now()
	transcript, err := f.Transcribe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, SourcePlaceholder, transcript.Source)
}

func TestFallbackTranscriberSkipsOpenCircuit(t *testing.T) {
	primary := NewMockProvider("").WithError(errors.New("service down"))
	breaker := circuitbreaker.NewCircuitBreaker("stt", &circuitbreaker.Config{
		FailureThreshold: 1,
		Timeout:          time.Hour,
		RequestTimeout:   time.Second,
		TimeWindow:       time.Minute,
	}, testLogger())
	f := NewFallbackTranscriber(testLogger(), primary, breaker, time.Second)

	for i := 0; i < 3; i++ {
		transcript, err := f.Transcribe(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, SourcePlaceholder, transcript.Source)
	}
	assert.Equal(t, 1, primary.Calls())
}

func TestProviderManagerRoutesToDefault(t *testing.T) {
	m := NewProviderManager(testLogger(), "mock")

	_, err := m.Transcribe(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrNoProviderAvailable)

	m.RegisterProvider(NewMockProvider("good morning"))
	m.RegisterProvider(NewPlaceholderTranscriber())
	assert.Equal(t, []string{"mock", "placeholder"}, m.Names())

	transcript, err := m.Transcribe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "good morning", transcript.Text)
}

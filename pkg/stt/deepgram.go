package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"amd-server/pkg/media"
	"amd-server/pkg/version"

	"github.com/sirupsen/logrus"
)

// DeepgramConfig configures the Deepgram pre-recorded transcription API
type DeepgramConfig struct {
	APIKey   string
	APIURL   string
	Model    string
	Language string
}

// DeepgramProvider uploads the greeting as WAV to Deepgram's pre-recorded endpoint
type DeepgramProvider struct {
	logger *logrus.Entry
	config DeepgramConfig
	client *http.Client
}

// NewDeepgramProvider creates a new Deepgram provider
func NewDeepgramProvider(logger *logrus.Logger, config DeepgramConfig) *DeepgramProvider {
	if config.APIURL == "" {
		config.APIURL = "https://api.deepgram.com/v1/listen"
	}
	if config.Model == "" {
		config.Model = "nova-2"
	}
	if config.Language == "" {
		config.Language = "multi"
	}
	return &DeepgramProvider{
		logger: logger.WithField("provider", "deepgram"),
		config: config,
		client: &http.Client{},
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests
func (p *DeepgramProvider) WithHTTPClient(client *http.Client) *DeepgramProvider {
	p.client = client
	return p
}

// Name returns the provider name
func (p *DeepgramProvider) Name() string {
	return "deepgram"
}

// Initialize checks that the provider can authenticate
func (p *DeepgramProvider) Initialize() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("%w: deepgram API key is not set", ErrInitializationFailed)
	}
	p.logger.Info("Deepgram provider initialized successfully")
	return nil
}

// DeepgramResponse is the subset of the Deepgram response the detector reads
type DeepgramResponse struct {
	RequestID string `json:"request_id"`
	Results   struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
	} `json:"metadata"`
}

// Transcribe sends the greeting to Deepgram and returns the best alternative
func (p *DeepgramProvider) Transcribe(ctx context.Context, req Request) (*Transcript, error) {
	if req.Audio.IsEmpty() {
		return nil, ErrEmptyAudio
	}

	body := bytes.NewReader(media.EncodeWAV(req.Audio))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.APIURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Token "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", "audio/wav")
	httpReq.Header.Set("User-Agent", version.UserAgent())

	language := req.Language
	if language == "" {
		language = p.config.Language
	}
	query := httpReq.URL.Query()
	query.Add("model", p.config.Model)
	query.Add("language", language)
	query.Add("punctuate", "true")
	httpReq.URL.RawQuery = query.Encode()

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: request to deepgram: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: deepgram returned status %d: %s", ErrTranscriptionFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var deepgramResp DeepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&deepgramResp); err != nil {
		return nil, fmt.Errorf("failed to decode Deepgram response: %w", err)
	}

	if len(deepgramResp.Results.Channels) == 0 || len(deepgramResp.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("%w: deepgram returned no alternatives", ErrTranscriptionFailed)
	}

	channel := deepgramResp.Results.Channels[0]
	alternative := channel.Alternatives[0]
	detected := channel.DetectedLanguage
	if detected == "" {
		detected = language
	}

	p.logger.WithFields(logrus.Fields{
		"call_id":    req.CallID,
		"request_id": deepgramResp.Metadata.RequestID,
		"confidence": alternative.Confidence,
	}).Debug("Received Deepgram transcript")

	return &Transcript{
		Text:       alternative.Transcript,
		Language:   detected,
		Confidence: alternative.Confidence,
		Provider:   p.Name(),
		Source:     SourceSTT,
	}, nil
}

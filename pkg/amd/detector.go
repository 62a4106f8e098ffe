package amd

import (
	"context"
	"sync"
	"time"

	"amd-server/pkg/media"
	"amd-server/pkg/metrics"
	"amd-server/pkg/stt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FallbackConfidence is the confidence reported when no analysis could complete
const FallbackConfidence = 0.5

// minFusionReserve is the smallest slice of the detection deadline kept back
// from speech-to-text
const minFusionReserve = 25 * time.Millisecond

// Detector runs the full detection pipeline for one call at a time per
// invocation; a single Detector is shared by all concurrent calls.
type Detector struct {
	logger      *logrus.Entry
	decoder     media.AudioDecoder
	extractor   *FeatureExtractor
	beeps       *BeepDetector
	analyzer    *CulturalAnalyzer
	classifier  Classifier
	transcriber stt.Transcriber
	store       *MetricsStore

	configMutex sync.RWMutex
	config      Configuration
}

// Option customises a Detector
type Option func(*Detector)

// WithDecoder sets the decoder used for raw payloads
func WithDecoder(decoder media.AudioDecoder) Option {
	return func(d *Detector) { d.decoder = decoder }
}

// WithClassifier replaces the heuristic classifier
func WithClassifier(classifier Classifier) Option {
	return func(d *Detector) { d.classifier = classifier }
}

// WithTranscriber sets the speech-to-text collaborator
func WithTranscriber(transcriber stt.Transcriber) Option {
	return func(d *Detector) { d.transcriber = transcriber }
}

// WithMetricsStore shares a performance store between detectors
func WithMetricsStore(store *MetricsStore) Option {
	return func(d *Detector) { d.store = store }
}

// WithPatternRules replaces the greeting rule table
func WithPatternRules(rules []PatternRule) Option {
	return func(d *Detector) {
		d.analyzer = NewCulturalAnalyzerWithRules(d.logger.Logger, d.config, rules)
	}
}

// NewDetector creates a detector. Without options it decodes WAV or raw
// mu-law, scores heuristically and uses placeholder transcripts.
func NewDetector(logger *logrus.Logger, config Configuration, opts ...Option) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		logger:      logger.WithField("component", "amd_detector"),
		decoder:     media.NewAutoDecoder(),
		extractor:   NewFeatureExtractor(logger),
		beeps:       NewBeepDetector(logger),
		analyzer:    NewCulturalAnalyzer(logger, config),
		classifier:  NewHeuristicClassifier(logger),
		transcriber: stt.NewPlaceholderTranscriber(),
		store:       NewMetricsStore(),
		config:      config.clone(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Configuration returns a snapshot of the current configuration
func (d *Detector) Configuration() Configuration {
	d.configMutex.RLock()
	defer d.configMutex.RUnlock()
	return d.config.clone()
}

// UpdateConfiguration merges a partial update. Calls already running keep
// the snapshot they started with.
func (d *Detector) UpdateConfiguration(update ConfigurationUpdate) (Configuration, error) {
	d.configMutex.Lock()
	defer d.configMutex.Unlock()

	next, err := d.config.Merge(update)
	if err != nil {
		return d.config.clone(), err
	}
	d.config = next

	d.logger.WithFields(logrus.Fields{
		"sensitivity":        next.SensitivityLevel,
		"max_detection_time": next.MaxDetectionTime,
	}).Info("Detector configuration updated")
	return next.clone(), nil
}

// Performance returns the detector's running performance metrics
func (d *Detector) Performance() PerformanceMetrics {
	return d.store.Snapshot()
}

// RecordFeedback folds a labelled outcome into the performance metrics and
// warns when the configured quality thresholds are breached.
func (d *Detector) RecordFeedback(result DetectionResult, actualMachine bool) PerformanceMetrics {
	perf := d.store.RecordFeedback(result.IsAnsweringMachine, actualMachine)
	metrics.SetDetectorAccuracy(perf.Accuracy)

	cfg := d.Configuration()
	fields := logrus.Fields{
		"accuracy":            perf.Accuracy,
		"false_positive_rate": perf.FalsePositiveRate(),
		"labelled":            perf.LabelledDetections,
	}
	if perf.Accuracy < cfg.AccuracyThreshold {
		d.logger.WithFields(fields).Warn("Detection accuracy below threshold")
	}
	if perf.FalsePositiveRate() > cfg.FalsePositiveThreshold {
		d.logger.WithFields(fields).Warn("False positive rate above threshold")
	}
	return perf
}

// FallbackResult is the universal best-effort decision: keep the call going
func FallbackResult() DetectionResult {
	return DetectionResult{
		IsAnsweringMachine: false,
		Confidence:         FallbackConfidence,
		AudioAnalysis: AudioAnalysis{
			Classification: NeutralClassification(),
		},
		CulturalContext:   UnknownMarkers(),
		RecommendedAction: ActionContinueCall,
	}
}

// Detect decodes raw call audio and runs the pipeline. It always returns a
// result; decode failures yield the fallback decision.
func (d *Detector) Detect(ctx context.Context, raw []byte) DetectionResult {
	start := time.Now()

	buf, err := d.decoder.Decode(raw)
	if err != nil {
		// Undecodable audio skips the pipeline: zeroed features carry no
		// evidence, so the result would be the fallback decision anyway.
		d.logger.WithError(err).WithField("bytes", len(raw)).Warn("Audio decode failed, returning fallback decision")
		metrics.RecordDecodeFailure("auto")
		result := FallbackResult()
		result.AudioAnalysis.DecodeError = err.Error()
		return d.finish(result, start)
	}
	return d.detect(ctx, buf, start)
}

// DetectBuffer runs the pipeline on already decoded audio
func (d *Detector) DetectBuffer(ctx context.Context, buf *media.AudioBuffer) DetectionResult {
	return d.detect(ctx, buf, time.Now())
}

func (d *Detector) detect(ctx context.Context, buf *media.AudioBuffer, start time.Time) DetectionResult {
	cfg := d.Configuration()

	ctx, cancel := context.WithTimeout(ctx, cfg.MaxDetectionTime)
	defer cancel()

	done := make(chan DetectionResult, 1)
	go func() {
		done <- d.run(ctx, buf, cfg)
	}()

	var result DetectionResult
	select {
	case result = <-done:
	case <-ctx.Done():
		d.logger.WithField("deadline", cfg.MaxDetectionTime).Warn("Detection deadline exceeded, returning fallback decision")
		metrics.RecordDetectionTimeout()
		result = FallbackResult()
		result.TimedOut = true
	}
	return d.finish(result, start)
}

func (d *Detector) finish(result DetectionResult, start time.Time) DetectionResult {
	elapsed := time.Since(start)
	result.Confidence = clamp01(result.Confidence)
	result.DetectionTimeMs = elapsed.Milliseconds()

	d.store.RecordDetection(elapsed)
	metrics.RecordDetection(result.IsAnsweringMachine, string(result.RecommendedAction), result.Confidence, elapsed)

	d.logger.WithFields(logrus.Fields{
		"is_machine":  result.IsAnsweringMachine,
		"confidence":  result.Confidence,
		"action":      result.RecommendedAction,
		"duration_ms": result.DetectionTimeMs,
		"timed_out":   result.TimedOut,
	}).Debug("Detection complete")
	return result
}

// run executes the pipeline stages against a configuration snapshot
func (d *Detector) run(ctx context.Context, buf *media.AudioBuffer, cfg Configuration) DetectionResult {
	if buf.IsEmpty() {
		result := FallbackResult()
		result.AudioAnalysis.DecodeError = "empty audio"
		return result
	}

	var features AudioFeatures
	var beep BeepResult
	if cfg.RealTimeProcessing {
		var g errgroup.Group
		g.Go(func() error {
			features = d.extractor.Extract(buf)
			return nil
		})
		g.Go(func() error {
			beep = d.beeps.Detect(buf)
			return nil
		})
		_ = g.Wait()
	} else {
		features = d.extractor.Extract(buf)
		beep = d.beeps.Detect(buf)
	}
	metrics.RecordBeepScan(beep.Detected)

	if ctx.Err() != nil {
		result := FallbackResult()
		result.TimedOut = true
		return result
	}

	classification := classifySafely(ctx, d.logger, d.classifier, features)

	cultural := UnknownMarkers()
	if cfg.CulturalAdaptation {
		cultural = d.analyzeGreeting(ctx, buf, features, cfg)
	}

	fusion := Fuse(classification, cultural, beep, cfg)
	return DetectionResult{
		IsAnsweringMachine: fusion.IsAnsweringMachine,
		Confidence:         fusion.Confidence,
		AudioAnalysis: AudioAnalysis{
			Features:       features,
			Beep:           beep,
			Classification: classification,
		},
		CulturalContext:   cultural,
		RecommendedAction: Decide(fusion, cultural),
	}
}

// analyzeGreeting obtains a transcript, falling back to the placeholder
// text, and classifies it.
func (d *Detector) analyzeGreeting(ctx context.Context, buf *media.AudioBuffer, features AudioFeatures, cfg Configuration) CulturalMarkers {
	req := stt.Request{
		Audio:    buf,
		Language: transcriptionLanguage(cfg),
		Duration: features.Duration,
		RMS:      features.Spectral.RMS,
	}

	text := ""
	source := TranscriptFromPlaceholder
	var transcript *stt.Transcript
	err := context.DeadlineExceeded
	if budget := transcriptBudget(ctx, cfg.MaxDetectionTime); budget > 0 {
		sttCtx, cancel := context.WithTimeout(ctx, budget)
		transcript, err = d.transcriber.Transcribe(sttCtx, req)
		cancel()
	}
	switch {
	case err != nil || transcript == nil:
		if err != nil {
			d.logger.WithError(err).Debug("Speech-to-text unavailable, using placeholder transcript")
		}
		text = stt.PlaceholderText(req.Duration, req.RMS)
	case transcript.Source == stt.SourcePlaceholder:
		text = transcript.Text
	default:
		text = transcript.Text
		source = TranscriptFromSTT
	}
	metrics.RecordTranscriptSource(string(source))

	markers := d.analyzer.AnalyzeWith(text, cfg)
	markers.TranscriptSource = source
	return markers
}

func transcriptionLanguage(cfg Configuration) string {
	if cfg.MalayalamPatterns {
		return "ml"
	}
	return "en"
}

// transcriptBudget is the time left for speech-to-text once a reserve for
// transcript analysis and fusion is held back from the detection deadline.
func transcriptBudget(ctx context.Context, maxDetection time.Duration) time.Duration {
	reserve := maxDetection / 4
	if reserve < minFusionReserve {
		reserve = minFusionReserve
	}
	remaining := maxDetection
	if deadline, ok := ctx.Deadline(); ok {
		remaining = time.Until(deadline)
	}
	return remaining - reserve
}

package amd

import (
	"context"
	"sync"
	"testing"
	"time"

	"amd-server/pkg/media"
	"amd-server/pkg/stt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowClassifier struct {
	delay time.Duration
}

func (c slowClassifier) Classify(ctx context.Context, f AudioFeatures) (Classification, error) {
	time.Sleep(c.delay)
	return Classification{IsAnsweringMachine: true, Confidence: 0.99}, nil
}

func newTestDetector(t *testing.T, cfg Configuration, opts ...Option) *Detector {
	t.Helper()
	d, err := NewDetector(testLogger(), cfg, opts...)
	require.NoError(t, err)
	return d
}

func TestNewDetectorRejectsInvalidConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.SensitivityLevel = 2
	_, err := NewDetector(testLogger(), cfg)
	assert.Error(t, err)
}

func TestDetectUndecodableAudio(t *testing.T) {
	d := newTestDetector(t, DefaultConfiguration())

	for _, raw := range [][]byte{nil, {}} {
		result := d.Detect(context.Background(), raw)
		assert.False(t, result.IsAnsweringMachine)
		assert.Equal(t, FallbackConfidence, result.Confidence)
		assert.Equal(t, ActionContinueCall, result.RecommendedAction)
		assert.NotEmpty(t, result.AudioAnalysis.DecodeError)
		assert.Equal(t, GreetingUnknown, result.CulturalContext.GreetingPattern)
	}
	assert.Equal(t, int64(2), d.Performance().TotalDetections)
}

func TestDetectBeepRecording(t *testing.T) {
	d := newTestDetector(t, DefaultConfiguration())

	wav := media.EncodeWAV(media.NewAudioBuffer(sine(900, 8000, 1, 0.5), 8000))
	result := d.Detect(context.Background(), wav)

	assert.Empty(t, result.AudioAnalysis.DecodeError)
	assert.False(t, result.TimedOut)
	assert.True(t, result.AudioAnalysis.Beep.Detected)
	assert.InDelta(t, 900, result.AudioAnalysis.Beep.Frequency, 10)
	assert.Equal(t, TranscriptFromPlaceholder, result.CulturalContext.TranscriptSource)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.GreaterOrEqual(t, result.DetectionTimeMs, int64(0))
}

func TestDetectDeadline(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.MaxDetectionTime = 50 * time.Millisecond
	d := newTestDetector(t, cfg, WithClassifier(slowClassifier{delay: 500 * time.Millisecond}))

	start := time.Now()
	result := d.DetectBuffer(context.Background(), media.NewAudioBuffer(sine(440, 8000, 1, 0.3), 8000))

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.True(t, result.TimedOut)
	assert.False(t, result.IsAnsweringMachine)
	assert.Equal(t, FallbackConfidence, result.Confidence)
	assert.Equal(t, ActionContinueCall, result.RecommendedAction)
}

func TestDetectSlowTranscriberFallsBackToPlaceholder(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.MaxDetectionTime = 300 * time.Millisecond
	provider := stt.NewMockProvider("hello").WithDelay(10 * time.Second)
	d := newTestDetector(t, cfg, WithTranscriber(provider))

	wav := media.EncodeWAV(media.NewAudioBuffer(sine(900, 8000, 1, 0.5), 8000))
	for i := 0; i < 5; i++ {
		start := time.Now()
		result := d.Detect(context.Background(), wav)

		assert.Less(t, time.Since(start), time.Second)
		assert.False(t, result.TimedOut)
		assert.Equal(t, TranscriptFromPlaceholder, result.CulturalContext.TranscriptSource)
		assert.True(t, result.AudioAnalysis.Beep.Detected, "beep evidence is kept")
	}
	assert.Equal(t, 5, provider.Calls())
}

func TestTranscriptBudget(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	budget := transcriptBudget(ctx, time.Second)
	assert.Greater(t, budget, 700*time.Millisecond)
	assert.LessOrEqual(t, budget, 750*time.Millisecond)

	assert.Equal(t, 75*time.Millisecond, transcriptBudget(context.Background(), 100*time.Millisecond))

	expired, cancelExpired := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancelExpired()
	time.Sleep(5 * time.Millisecond)
	assert.LessOrEqual(t, transcriptBudget(expired, time.Second), time.Duration(0))
}

func TestDetectUsesTranscriber(t *testing.T) {
	provider := stt.NewMockProvider("Hi, please leave a message after the beep")
	d := newTestDetector(t, DefaultConfiguration(), WithTranscriber(provider))

	result := d.DetectBuffer(context.Background(), media.NewAudioBuffer(sine(440, 8000, 2, 0.3), 8000))

	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, TranscriptFromSTT, result.CulturalContext.TranscriptSource)
	assert.True(t, result.CulturalContext.MachinePhrasing)
	assert.Equal(t, GreetingEnglish, result.CulturalContext.GreetingPattern)
	assert.True(t, result.CulturalContext.HasMarker(TagGenericMachine))
}

func TestDetectWithoutCulturalAdaptation(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.CulturalAdaptation = false
	provider := stt.NewMockProvider("namaskaram")
	d := newTestDetector(t, cfg, WithTranscriber(provider))

	result := d.DetectBuffer(context.Background(), media.NewAudioBuffer(sine(440, 8000, 1, 0.3), 8000))

	assert.Equal(t, 0, provider.Calls())
	assert.Equal(t, TranscriptNone, result.CulturalContext.TranscriptSource)
	assert.Equal(t, GreetingUnknown, result.CulturalContext.GreetingPattern)
	assert.Empty(t, result.CulturalContext.Markers)
}

func TestDetectParallelMatchesSequential(t *testing.T) {
	samples := append(sine(300, 8000, 1, 0.2), sine(1000, 8000, 0.5, 0.5)...)

	parallelCfg := DefaultConfiguration()
	sequentialCfg := DefaultConfiguration()
	sequentialCfg.RealTimeProcessing = false

	parallel := newTestDetector(t, parallelCfg).DetectBuffer(context.Background(), media.NewAudioBuffer(samples, 8000))
	sequential := newTestDetector(t, sequentialCfg).DetectBuffer(context.Background(), media.NewAudioBuffer(samples, 8000))

	assert.Equal(t, sequential.IsAnsweringMachine, parallel.IsAnsweringMachine)
	assert.Equal(t, sequential.Confidence, parallel.Confidence)
	assert.Equal(t, sequential.AudioAnalysis.Features, parallel.AudioAnalysis.Features)
	assert.Equal(t, sequential.AudioAnalysis.Beep, parallel.AudioAnalysis.Beep)
	assert.Equal(t, sequential.RecommendedAction, parallel.RecommendedAction)
}

func TestDetectConcurrentCalls(t *testing.T) {
	d := newTestDetector(t, DefaultConfiguration())
	buf := media.NewAudioBuffer(sine(440, 8000, 0.5, 0.3), 8000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := d.DetectBuffer(context.Background(), buf)
			assert.GreaterOrEqual(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 1.0)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), d.Performance().TotalDetections)
}

func TestDetectorUpdateConfiguration(t *testing.T) {
	d := newTestDetector(t, DefaultConfiguration())

	level := 0.5
	updated, err := d.UpdateConfiguration(ConfigurationUpdate{SensitivityLevel: &level})
	require.NoError(t, err)
	assert.Equal(t, 0.5, updated.SensitivityLevel)
	assert.Equal(t, 0.5, d.Configuration().SensitivityLevel)

	bad := 0.01
	current, err := d.UpdateConfiguration(ConfigurationUpdate{SensitivityLevel: &bad})
	assert.Error(t, err)
	assert.Equal(t, 0.5, current.SensitivityLevel)

	// Snapshots do not alias the detector's state
	snapshot := d.Configuration()
	snapshot.MalayalamGreetingDatabase[0] = "changed"
	assert.NotEqual(t, "changed", d.Configuration().MalayalamGreetingDatabase[0])
}

func TestDetectorRecordFeedback(t *testing.T) {
	d := newTestDetector(t, DefaultConfiguration())

	machine := DetectionResult{IsAnsweringMachine: true}
	human := DetectionResult{IsAnsweringMachine: false}

	perf := d.RecordFeedback(machine, true)
	assert.Equal(t, 1.0, perf.Accuracy)

	perf = d.RecordFeedback(machine, false)
	assert.Equal(t, int64(1), perf.FalsePositives)
	assert.InDelta(t, 0.5, perf.Accuracy, 1e-12)

	perf = d.RecordFeedback(human, true)
	assert.Equal(t, int64(1), perf.FalseNegatives)
	assert.InDelta(t, 1.0/3, perf.Accuracy, 1e-12)
	assert.Equal(t, int64(3), d.Performance().LabelledDetections)
}

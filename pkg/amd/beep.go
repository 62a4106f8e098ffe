package amd

import (
	"math"

	"amd-server/pkg/media"

	"github.com/sirupsen/logrus"
)

const (
	beepWindowSeconds   = 0.100
	beepStepSeconds     = 0.050
	beepNeighbourBins   = 5
	beepDetectThreshold = 0.7
	// Peaks below this are transform round-off, not signal
	minToneMagnitude = 1e-6
)

// BeepFrequencies are the tones answering machines commonly play before recording
var BeepFrequencies = []float64{800, 850, 900, 950, 1000}

// BeepDetector scans sliding windows for a narrowband telephony beep
type BeepDetector struct {
	logger      *logrus.Entry
	frequencies []float64
}

// NewBeepDetector creates a beep detector for the standard beep frequencies
func NewBeepDetector(logger *logrus.Logger) *BeepDetector {
	return &BeepDetector{
		logger:      logger.WithField("component", "amd_beep"),
		frequencies: BeepFrequencies,
	}
}

// Detect looks for the strongest beep candidate across all windows
func (bd *BeepDetector) Detect(buf *media.AudioBuffer) BeepResult {
	if buf.IsEmpty() {
		return BeepResult{}
	}

	sampleRate := buf.SampleRate
	windowSize := int(beepWindowSeconds * float64(sampleRate))
	stepSize := int(beepStepSeconds * float64(sampleRate))
	if windowSize <= 1 || stepSize <= 0 || buf.Len() < windowSize {
		return BeepResult{}
	}

	var result BeepResult
	for start := 0; start+windowSize <= buf.Len(); start += stepSize {
		window := buf.Samples[start : start+windowSize]
		magnitudes := SpectralTransform(window)
		n := transformLength(len(window))

		for _, freq := range bd.frequencies {
			bin := int(math.Round(freq * float64(n) / float64(sampleRate)))
			confidence := toneConfidence(magnitudes, bin)
			if confidence > result.Confidence {
				result.Confidence = confidence
				result.Timing = float64(start) / float64(sampleRate)
			}
		}
	}

	result.Confidence = clamp01(result.Confidence)
	result.Detected = result.Confidence > beepDetectThreshold
	if result.Detected {
		result.Frequency = dominantFrequency(buf.Samples, sampleRate)
		bd.logger.WithFields(logrus.Fields{
			"timing":     result.Timing,
			"confidence": result.Confidence,
			"frequency":  result.Frequency,
		}).Debug("Beep detected")
	}
	return result
}

// toneConfidence maps the peak-to-neighbourhood ratio at bin onto [0,1]
func toneConfidence(magnitudes []float64, bin int) float64 {
	if bin < 0 || bin >= len(magnitudes) {
		return 0
	}
	peak := magnitudes[bin]
	if peak < minToneMagnitude {
		return 0
	}

	sum, count := 0.0, 0
	for k := bin - beepNeighbourBins; k <= bin+beepNeighbourBins; k++ {
		if k == bin || k < 0 || k >= len(magnitudes) {
			continue
		}
		sum += magnitudes[k]
		count++
	}
	if count == 0 {
		return 0
	}

	mean := sum / float64(count)
	if mean == 0 {
		// A pure tone with silent neighbours is as clean as it gets
		return 1
	}

	snr := peak / mean
	return clamp01((snr - 2) / 8)
}

// dominantFrequency returns the frequency of the strongest bin of the full-signal transform
func dominantFrequency(samples []float64, sampleRate int) float64 {
	magnitudes := SpectralTransform(samples)
	if len(magnitudes) == 0 {
		return 0
	}
	best := 0
	for k, mag := range magnitudes {
		if mag > magnitudes[best] {
			best = k
		}
	}
	return float64(best) * float64(sampleRate) / float64(transformLength(len(samples)))
}

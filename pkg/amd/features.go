package amd

import (
	"math"

	"amd-server/pkg/media"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

const (
	preEmphasis       = 0.97
	mfccFrameSeconds  = 0.025
	mfccShiftSeconds  = 0.010
	pitchSampleLimit  = 1000
	pitchMinFrequency = 50.0
	pitchMaxFrequency = 500.0
)

// FeatureExtractor derives spectral, prosody and MFCC-like features from a
// decoded call slice. It holds no per-call state and is safe for concurrent use.
type FeatureExtractor struct {
	logger *logrus.Entry
}

// NewFeatureExtractor creates a feature extractor
func NewFeatureExtractor(logger *logrus.Logger) *FeatureExtractor {
	return &FeatureExtractor{
		logger: logger.WithField("component", "amd_features"),
	}
}

// ExtractRaw decodes raw audio and extracts features. Decode failures are
// logged and produce the zero feature record.
func (fe *FeatureExtractor) ExtractRaw(decoder media.AudioDecoder, raw []byte) AudioFeatures {
	buf, err := decoder.Decode(raw)
	if err != nil {
		fe.logger.WithError(err).WithField("bytes", len(raw)).Warn("Audio decode failed, using empty features")
		return AudioFeatures{}
	}
	return fe.Extract(buf)
}

// Extract computes the feature record for a decoded buffer
func (fe *FeatureExtractor) Extract(buf *media.AudioBuffer) AudioFeatures {
	if buf.IsEmpty() {
		return AudioFeatures{}
	}

	samples := buf.Samples
	features := AudioFeatures{
		Duration:   buf.Seconds(),
		SampleRate: buf.SampleRate,
	}

	fe.extractEnergy(samples, &features)
	fe.extractSpectral(samples, buf.SampleRate, &features)
	fe.extractProsody(samples, buf.SampleRate, &features)
	features.MFCC = approximateMFCC(samples, buf.SampleRate)

	fe.logger.WithFields(logrus.Fields{
		"duration":        features.Duration,
		"rms":             features.Spectral.RMS,
		"centroid":        features.Spectral.Centroid,
		"pitch_variation": features.Prosody.PitchVariation,
	}).Debug("Extracted audio features")

	return features
}

// extractEnergy computes RMS and zero crossing rate over the whole signal
func (fe *FeatureExtractor) extractEnergy(samples []float64, features *AudioFeatures) {
	sumSquares := 0.0
	for _, sample := range samples {
		sumSquares += sample * sample
	}
	features.Spectral.RMS = math.Sqrt(sumSquares / float64(len(samples)))

	zeroCrossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			zeroCrossings++
		}
	}
	features.Spectral.ZCR = float64(zeroCrossings) / float64(len(samples))
}

// extractSpectral fills the centroid and the leading frequency bins
func (fe *FeatureExtractor) extractSpectral(samples []float64, sampleRate int, features *AudioFeatures) {
	magnitudes := SpectralTransform(samples)
	features.Spectral.Centroid = spectralCentroid(magnitudes, sampleRate)
	copy(features.Spectral.FrequencyBins[:], magnitudes)
}

// spectralCentroid is the magnitude-weighted mean frequency. Bin k of a
// half spectrum of length M sits at k*sampleRate/(2M) Hz.
func spectralCentroid(magnitudes []float64, sampleRate int) float64 {
	if len(magnitudes) == 0 {
		return 0
	}
	binWidth := float64(sampleRate) / (2 * float64(len(magnitudes)))

	weighted, total := 0.0, 0.0
	for k, mag := range magnitudes {
		weighted += float64(k) * binWidth * mag
		total += mag
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// extractProsody fills the amplitude envelope, energy variation and periodicity strength
func (fe *FeatureExtractor) extractProsody(samples []float64, sampleRate int, features *AudioFeatures) {
	m := len(samples)
	if m > EnvelopeLength {
		m = EnvelopeLength
	}
	for i := 0; i < m; i++ {
		features.Prosody.AmplitudeEnvelope[i] = math.Abs(samples[i])
	}

	if m > 1 {
		deltas := make([]float64, m-1)
		for i := 1; i < m; i++ {
			deltas[i-1] = math.Abs(features.Prosody.AmplitudeEnvelope[i] - features.Prosody.AmplitudeEnvelope[i-1])
		}
		features.Prosody.EnergyVariation = stat.Mean(deltas, nil)
	}

	features.Prosody.PitchVariation = periodicityStrength(samples, sampleRate)
}

// periodicityStrength searches lags covering 50-500 Hz and returns the highest
// autocorrelation normalised by the zero-lag energy.
func periodicityStrength(samples []float64, sampleRate int) float64 {
	frame := samples
	if len(frame) > pitchSampleLimit {
		frame = frame[:pitchSampleLimit]
	}
	n := len(frame)

	energy := 0.0
	for _, s := range frame {
		energy += s * s
	}
	if energy == 0 {
		return 0
	}

	minLag := int(float64(sampleRate) / pitchMaxFrequency)
	maxLag := int(float64(sampleRate) / pitchMinFrequency)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag > n-1 {
		maxLag = n - 1
	}

	best := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		sum := 0.0
		for i := 0; i < n-lag; i++ {
			sum += frame[i] * frame[i+lag]
		}
		if r := sum / energy; r > best {
			best = r
		}
	}
	return best
}

// approximateMFCC produces cepstral-like coefficients without a mel filterbank:
// coefficient i is a DCT-II weighted sum over the pre-emphasised 25 ms frame
// starting at i*10 ms, normalised by the frame length.
func approximateMFCC(samples []float64, sampleRate int) [MFCCCount]float64 {
	var coeffs [MFCCCount]float64

	frameLen := int(math.Round(mfccFrameSeconds * float64(sampleRate)))
	frameShift := int(math.Round(mfccShiftSeconds * float64(sampleRate)))
	if frameLen <= 0 || frameShift <= 0 {
		return coeffs
	}

	emphasised := make([]float64, len(samples))
	for n := range samples {
		if n == 0 {
			emphasised[n] = samples[n]
			continue
		}
		emphasised[n] = samples[n] - preEmphasis*samples[n-1]
	}

	for i := 0; i < MFCCCount; i++ {
		start := i * frameShift
		if start >= len(emphasised) {
			break
		}
		end := start + frameLen
		if end > len(emphasised) {
			end = len(emphasised)
		}

		sum := 0.0
		for j := start; j < end; j++ {
			k := float64(j - start)
			sum += emphasised[j] * math.Cos(math.Pi*float64(i)*(k+0.5)/float64(frameLen))
		}
		coeffs[i] = sum / float64(frameLen)
	}
	return coeffs
}

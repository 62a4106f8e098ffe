package media

import (
	"time"
)

// AudioBuffer is a decoded mono signal. Samples are normalised to [-1, 1].
// A buffer is owned by the call that produced it and must not be mutated
// once handed to the detection pipeline.
type AudioBuffer struct {
	Samples    []float64
	SampleRate int
	Duration   time.Duration
}

// NewAudioBuffer builds a buffer and derives its duration from the sample count.
func NewAudioBuffer(samples []float64, sampleRate int) *AudioBuffer {
	buf := &AudioBuffer{
		Samples:    samples,
		SampleRate: sampleRate,
	}
	if sampleRate > 0 {
		buf.Duration = time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second))
	}
	return buf
}

// Len returns the number of samples
func (b *AudioBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Seconds returns the buffer duration in seconds
func (b *AudioBuffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// IsEmpty reports whether the buffer carries no usable signal
func (b *AudioBuffer) IsEmpty() bool {
	return b == nil || len(b.Samples) == 0 || b.SampleRate <= 0
}

// pcm16ToFloat converts interleaved little-endian PCM16 into mono float samples,
// keeping only the first channel.
func pcm16ToFloat(data []byte, channels int) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameBytes := 2 * channels
	frames := len(data) / frameBytes
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		off := i * frameBytes
		v := int16(uint16(data[off]) | uint16(data[off+1])<<8)
		samples[i] = float64(v) / 32768.0
	}
	return samples
}

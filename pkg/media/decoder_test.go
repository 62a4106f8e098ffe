package media

import (
	"encoding/binary"
	"math"
	"runtime"
	"testing"

	"amd-server/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineBuffer(freq float64, sampleRate int, seconds float64) *AudioBuffer {
	n := int(float64(sampleRate) * seconds)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return NewAudioBuffer(samples, sampleRate)
}

func TestWAVRoundTrip(t *testing.T) {
	original := sineBuffer(440, 8000, 0.25)

	decoded, err := WAVDecoder{}.Decode(EncodeWAV(original))
	require.NoError(t, err)

	assert.Equal(t, 8000, decoded.SampleRate)
	assert.Equal(t, original.Len(), decoded.Len())
	assert.InDelta(t, 0.25, decoded.Seconds(), 1e-9)
	for i := range original.Samples {
		assert.InDelta(t, original.Samples[i], decoded.Samples[i], 1.0/16384, "sample %d", i)
	}
}

func TestWAVDecoderKeepsFirstChannel(t *testing.T) {
	// Two stereo frames: left = 16384, right = -16384
	data := make([]byte, 8)
	for i := 0; i < 2; i++ {
		binary.LittleEndian.PutUint16(data[i*4:], uint16(16384))
		v := int16(-16384)
		binary.LittleEndian.PutUint16(data[i*4+2:], uint16(v))
	}

	wav := EncodeWAV(NewAudioBuffer(nil, 8000))
	binary.LittleEndian.PutUint16(wav[22:], 2)
	binary.LittleEndian.PutUint32(wav[40:], uint32(len(data)))
	wav = append(wav, data...)

	buf, err := WAVDecoder{}.Decode(wav)
	require.NoError(t, err)
	require.Equal(t, 2, buf.Len())
	assert.InDelta(t, 0.5, buf.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, buf.Samples[1], 1e-9)
}

func TestWAVDecoderHeaderSizesDoNotDriveAllocation(t *testing.T) {
	pcm := EncodeWAV(sineBuffer(440, 8000, 0.1))[44:]

	withDataSize := func(size uint32) []byte {
		wav := EncodeWAV(NewAudioBuffer(nil, 8000))
		binary.LittleEndian.PutUint32(wav[40:], size)
		return append(wav, pcm...)
	}

	testCases := []struct {
		name string
		size uint32
	}{
		{"streaming placeholder size", 0xFFFFFFFF},
		{"zero size", 0},
		{"size past end of payload", 1 << 30},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)

			buf, err := WAVDecoder{}.Decode(withDataSize(tc.size))

			runtime.ReadMemStats(&after)
			require.NoError(t, err)
			assert.Equal(t, len(pcm)/2, buf.Len())
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
		})
	}

	t.Run("oversized fmt chunk", func(t *testing.T) {
		wav := EncodeWAV(NewAudioBuffer(nil, 8000))
		binary.LittleEndian.PutUint32(wav[16:], 0xFFFFFFF0)

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)

		_, err := WAVDecoder{}.Decode(append(wav, pcm...))

		runtime.ReadMemStats(&after)
		assert.Error(t, err)
		assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(16<<20))
	})
}

func TestWAVDecoderRejectsGarbage(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("this is definitely not audio")},
		{"header only", []byte("RIFF\x00\x00\x00\x00WAVE")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := WAVDecoder{}.Decode(tc.data)
			require.Error(t, err)
			assert.True(t, errors.IsErrorType(err, errors.ErrDecodeFailed))
		})
	}
}

func TestG711Decoding(t *testing.T) {
	// 0xFF is mu-law silence, 0xD5 is A-law silence
	mu, err := NewG711Decoder("PCMU", 0)
	require.NoError(t, err)
	buf, err := mu.Decode([]byte{0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, DefaultTelephonySampleRate, buf.SampleRate)
	for _, s := range buf.Samples {
		assert.InDelta(t, 0.0, s, 1e-3)
	}

	a, err := NewG711Decoder("g.711a", 8000)
	require.NoError(t, err)
	buf, err = a.Decode([]byte{0xD5, 0xD5})
	require.NoError(t, err)
	for _, s := range buf.Samples {
		assert.InDelta(t, 0.0, s, 1e-3)
	}

	// Loudest code words decode to opposite signs
	assert.Less(t, muLawDecodeTable[0x00], int16(0))
	assert.Greater(t, muLawDecodeTable[0x80], int16(0))
	assert.Equal(t, int16(32256), aLawDecodeTable[0xAA])
	assert.Equal(t, int16(-32256), aLawDecodeTable[0x2A])

	_, err = NewG711Decoder("opus", 8000)
	assert.Error(t, err)

	_, err = mu.Decode(nil)
	assert.Error(t, err)
}

func TestAutoDecoder(t *testing.T) {
	d := NewAutoDecoder()

	buf, err := d.Decode(EncodeWAV(sineBuffer(300, 16000, 0.1)))
	require.NoError(t, err)
	assert.Equal(t, 16000, buf.SampleRate)

	buf, err = d.Decode([]byte{0xFF, 0x7F, 0x00, 0x80})
	require.NoError(t, err)
	assert.Equal(t, 8000, buf.SampleRate)
	assert.Equal(t, 4, buf.Len())
}

func TestAudioBufferHelpers(t *testing.T) {
	var nilBuf *AudioBuffer
	assert.True(t, nilBuf.IsEmpty())
	assert.Equal(t, 0, nilBuf.Len())
	assert.Equal(t, 0.0, nilBuf.Seconds())

	buf := NewAudioBuffer(make([]float64, 4000), 8000)
	assert.False(t, buf.IsEmpty())
	assert.InDelta(t, 0.5, buf.Duration.Seconds(), 1e-9)
}

package media

import (
	"encoding/binary"
	"math"
)

// EncodeWAV renders a buffer as a mono 16-bit PCM WAV file. Used when a
// decoded call slice has to be re-uploaded to a transcription service.
func EncodeWAV(buf *AudioBuffer) []byte {
	sampleRate := DefaultTelephonySampleRate
	var samples []float64
	if buf != nil {
		samples = buf.Samples
		if buf.SampleRate > 0 {
			sampleRate = buf.SampleRate
		}
	}

	dataSize := len(samples) * 2
	out := make([]byte, 44+dataSize)

	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:], 1)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(out[32:], 2)
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))

	for i, s := range samples {
		v := math.Max(-1, math.Min(1, s))
		pcm := int16(math.Round(v * 32767))
		binary.LittleEndian.PutUint16(out[44+2*i:], uint16(pcm))
	}
	return out
}

package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"amd-server/pkg/errors"
)

// AudioDecoder turns an encoded payload into a mono AudioBuffer. The detection
// pipeline only ever sees the decoded samples and sample rate.
type AudioDecoder interface {
	Decode(data []byte) (*AudioBuffer, error)
}

// DefaultTelephonySampleRate is the G.711 narrowband rate
const DefaultTelephonySampleRate = 8000

// WAVDecoder decodes RIFF/WAVE containers carrying 16-bit PCM
type WAVDecoder struct{}

// Decode implements AudioDecoder
func (WAVDecoder) Decode(data []byte) (*AudioBuffer, error) {
	header, pcm, err := parseWAV(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewDecodeFailed(err, "wav")
	}

	switch header.audioFormat {
	case wavFormatPCM:
		if header.bitsPerSample != 16 {
			return nil, errors.NewDecodeFailed(fmt.Errorf("unsupported bits per sample: %d", header.bitsPerSample), "wav")
		}
		return NewAudioBuffer(pcm16ToFloat(pcm, header.channels), header.sampleRate), nil
	case wavFormatALaw, wavFormatMuLaw:
		codec := CodecPCMU
		if header.audioFormat == wavFormatALaw {
			codec = CodecPCMA
		}
		mono := firstChannelBytes(pcm, header.channels)
		return NewAudioBuffer(decodeG711(mono, codec), header.sampleRate), nil
	default:
		return nil, errors.NewDecodeFailed(fmt.Errorf("unsupported audio format: %d", header.audioFormat), "wav")
	}
}

// G711Decoder decodes headerless telephony payloads (RTP bodies, carrier dumps)
type G711Decoder struct {
	Codec      Codec
	SampleRate int
}

// NewG711Decoder creates a decoder for a named codec
func NewG711Decoder(codecName string, sampleRate int) (*G711Decoder, error) {
	codec, err := ParseCodec(codecName)
	if err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		sampleRate = DefaultTelephonySampleRate
	}
	return &G711Decoder{Codec: codec, SampleRate: sampleRate}, nil
}

// Decode implements AudioDecoder
func (d *G711Decoder) Decode(data []byte) (*AudioBuffer, error) {
	if len(data) == 0 {
		return nil, errors.NewDecodeFailed(fmt.Errorf("empty payload"), string(d.Codec))
	}

	switch d.Codec {
	case CodecL16:
		if len(data)%2 != 0 {
			return nil, errors.NewDecodeFailed(fmt.Errorf("odd byte count %d for 16-bit PCM", len(data)), string(d.Codec))
		}
		return NewAudioBuffer(pcm16ToFloat(data, 1), d.SampleRate), nil
	case CodecPCMU, CodecPCMA:
		return NewAudioBuffer(decodeG711(data, d.Codec), d.SampleRate), nil
	default:
		return nil, errors.NewDecodeFailed(fmt.Errorf("unsupported codec"), string(d.Codec))
	}
}

// AutoDecoder sniffs for a RIFF header and otherwise treats the payload as raw G.711
type AutoDecoder struct {
	Fallback AudioDecoder
}

// NewAutoDecoder returns a decoder that falls back to 8 kHz mu-law for headerless input
func NewAutoDecoder() *AutoDecoder {
	return &AutoDecoder{
		Fallback: &G711Decoder{Codec: CodecPCMU, SampleRate: DefaultTelephonySampleRate},
	}
}

// Decode implements AudioDecoder
func (d *AutoDecoder) Decode(data []byte) (*AudioBuffer, error) {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return WAVDecoder{}.Decode(data)
	}
	if d.Fallback == nil {
		return nil, errors.NewDecodeFailed(fmt.Errorf("not a WAV container"), "auto")
	}
	return d.Fallback.Decode(data)
}

const (
	wavFormatPCM   = 1
	wavFormatALaw  = 6
	wavFormatMuLaw = 7

	wavStreamingSize = 0xFFFFFFFF
)

type wavHeader struct {
	audioFormat   int
	channels      int
	sampleRate    int
	bitsPerSample int
}

func parseWAV(r io.ReadSeeker) (*wavHeader, []byte, error) {
	riff := make([]byte, 12)
	if _, err := io.ReadFull(r, riff); err != nil {
		return nil, nil, err
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, nil, fmt.Errorf("missing RIFF/WAVE header")
	}

	var header *wavHeader
	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(r, chunkHeader); err != nil {
			if header == nil {
				return nil, nil, fmt.Errorf("missing fmt chunk")
			}
			return nil, nil, fmt.Errorf("missing data chunk")
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, nil, fmt.Errorf("fmt chunk too short: %d", chunkSize)
			}
			fmtChunk, err := io.ReadAll(io.LimitReader(r, chunkSize))
			if err != nil {
				return nil, nil, err
			}
			if int64(len(fmtChunk)) < chunkSize {
				return nil, nil, fmt.Errorf("fmt chunk truncated: header says %d bytes, %d present", chunkSize, len(fmtChunk))
			}
			header = &wavHeader{
				audioFormat:   int(binary.LittleEndian.Uint16(fmtChunk[0:2])),
				channels:      int(binary.LittleEndian.Uint16(fmtChunk[2:4])),
				sampleRate:    int(binary.LittleEndian.Uint32(fmtChunk[4:8])),
				bitsPerSample: int(binary.LittleEndian.Uint16(fmtChunk[14:16])),
			}
			if header.channels <= 0 || header.sampleRate <= 0 {
				return nil, nil, fmt.Errorf("invalid fmt chunk: channels=%d rate=%d", header.channels, header.sampleRate)
			}
		case "data":
			if header == nil {
				return nil, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			// Streaming writers leave the size as 0 or 0xFFFFFFFF. Truncated
			// recordings are common on dropped calls; keep what arrived.
			var body io.Reader = r
			if chunkSize != 0 && chunkSize != wavStreamingSize {
				body = io.LimitReader(r, chunkSize)
			}
			data, err := io.ReadAll(body)
			if err != nil {
				return nil, nil, err
			}
			return header, data, nil
		default:
			if _, err := r.Seek(chunkSize+chunkSize%2, io.SeekCurrent); err != nil {
				return nil, nil, err
			}
		}

		if chunkSize%2 == 1 && chunkID == "fmt " {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				return nil, nil, err
			}
		}
	}
}

func firstChannelBytes(data []byte, channels int) []byte {
	if channels <= 1 {
		return data
	}
	frames := len(data) / channels
	mono := make([]byte, frames)
	for i := 0; i < frames; i++ {
		mono[i] = data[i*channels]
	}
	return mono
}

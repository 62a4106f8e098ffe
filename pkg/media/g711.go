package media

import (
	"fmt"
	"strings"
)

var (
	muLawDecodeTable [256]int16
	aLawDecodeTable  [256]int16
)

func init() {
	for i := 0; i < 256; i++ {
		muLawDecodeTable[i] = decodeMuLawSample(byte(i))
		aLawDecodeTable[i] = decodeALawSample(byte(i))
	}
}

// Codec identifies a raw telephony payload encoding
type Codec string

const (
	CodecPCMU Codec = "PCMU"
	CodecPCMA Codec = "PCMA"
	CodecL16  Codec = "L16"
)

// ParseCodec normalises the common aliases used by carriers and SDP offers.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "PCMU", "G711U", "G.711U", "G711MU", "MULAW", "ULAW":
		return CodecPCMU, nil
	case "PCMA", "G711A", "G.711A", "ALAW":
		return CodecPCMA, nil
	case "L16", "LINEAR16", "PCM16":
		return CodecL16, nil
	default:
		return "", fmt.Errorf("unsupported codec: %s", name)
	}
}

// decodeG711 converts a G.711 payload to normalised float samples
func decodeG711(payload []byte, codec Codec) []float64 {
	table := &muLawDecodeTable
	if codec == CodecPCMA {
		table = &aLawDecodeTable
	}

	samples := make([]float64, len(payload))
	for i, b := range payload {
		samples[i] = float64(table[b]) / 32768.0
	}
	return samples
}

func decodeMuLawSample(uval byte) int16 {
	uval = ^uval
	sign := int16(uval & 0x80)
	exponent := (uval >> 4) & 0x07
	mantissa := uval & 0x0F
	magnitude := ((int16(mantissa) << 3) + 0x84) << exponent
	magnitude -= 0x84
	if sign != 0 {
		return -magnitude
	}
	return magnitude
}

func decodeALawSample(aval byte) int16 {
	aval ^= 0x55
	sign := int16(aval & 0x80)
	exponent := (aval >> 4) & 0x07
	mantissa := aval & 0x0F

	magnitude := int16(mantissa) << 4
	switch exponent {
	case 0:
		magnitude += 8
	case 1:
		magnitude += 0x108
	default:
		magnitude += 0x108
		magnitude <<= exponent - 1
	}

	// A-law inverts the sign bit relative to mu-law
	if sign == 0 {
		return -magnitude
	}
	return magnitude
}

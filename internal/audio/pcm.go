package audio

import (
	"encoding/binary"
	"math"
)

// FloatToPCM16 converts a normalized sample to signed 16-bit PCM.
// Negative values scale by 32768 and positive values by 32767, so -1 and 1
// land exactly on the int16 bounds. Out of range input is clamped first.
func FloatToPCM16(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7fff)
}

// PCM16ToFloat normalizes a sample to [-1,1). The speech detector meters
// energy with it.
func PCM16ToFloat(s int16) float32 {
	return float32(s) / 0x8000
}

// EncodePCM16LE packs samples as little-endian bytes.
func EncodePCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodePCM16LE unpacks little-endian bytes. A trailing odd byte is ignored.
func DecodePCM16LE(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// saturate clamps a mixed sum into the int16 range.
func saturate(sum int32) (int16, bool) {
	switch {
	case sum > math.MaxInt16:
		return math.MaxInt16, true
	case sum < math.MinInt16:
		return math.MinInt16, true
	default:
		return int16(sum), false
	}
}

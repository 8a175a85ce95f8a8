package audio

import (
	"math"
	"testing"
)

func TestFloatToPCM16Bounds(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{1.0, 32767},
		{-1.0, -32768},
		{2.0, 32767},
		{-3.5, -32768},
		{0, 0},
		{0.5, 16383},
		{-0.5, -16384},
	}
	for _, c := range cases {
		if got := FloatToPCM16(c.in); got != c.want {
			t.Fatalf("FloatToPCM16(%v) = %d, want %d", c.in, got, c.want)
		}
	}
	if got := FloatToPCM16(float32(math.NaN())); got != 0 {
		t.Fatalf("NaN encoded to %d", got)
	}
}

func TestPCM16LittleEndian(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 258}
	data := EncodePCM16LE(samples)
	if len(data) != len(samples)*2 {
		t.Fatalf("unexpected byte length %d", len(data))
	}
	if data[2] != 0x01 || data[3] != 0x00 {
		t.Fatalf("sample 1 not little-endian: % x", data[2:4])
	}
	if data[10] != 0x02 || data[11] != 0x01 {
		t.Fatalf("sample 258 not little-endian: % x", data[10:12])
	}
	got := DecodePCM16LE(append(data, 0x7f))
	if len(got) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestSaturate(t *testing.T) {
	if v, clip := saturate(40000); v != 32767 || !clip {
		t.Fatalf("saturate(40000) = %d,%v", v, clip)
	}
	if v, clip := saturate(-40000); v != -32768 || !clip {
		t.Fatalf("saturate(-40000) = %d,%v", v, clip)
	}
	if v, clip := saturate(-123); v != -123 || clip {
		t.Fatalf("saturate(-123) = %d,%v", v, clip)
	}
}

func TestPCM16ToFloat(t *testing.T) {
	cases := []struct {
		in   int16
		want float32
	}{
		{math.MinInt16, -1},
		{0, 0},
		{16384, 0.5},
		{-8192, -0.25},
	}
	for _, c := range cases {
		if got := PCM16ToFloat(c.in); got != c.want {
			t.Fatalf("PCM16ToFloat(%d) = %v, want %v", c.in, got, c.want)
		}
	}
	if got := FloatToPCM16(PCM16ToFloat(-12345)); got != -12345 {
		t.Fatalf("negative round trip = %d", got)
	}
}

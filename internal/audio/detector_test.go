package audio

import "testing"

func constant(v int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRMSEnergy(t *testing.T) {
	if RMSEnergy(nil) != 0 {
		t.Fatalf("empty input should be silent")
	}
	if got := RMSEnergy(constant(16384, 10)); got != 0.5 {
		t.Fatalf("RMSEnergy = %v, want 0.5", got)
	}
}

func TestSpeechDetectorHoldAndRearm(t *testing.T) {
	d := NewSpeechDetector(0.1, 2)
	loud := constant(8000, 64)
	quiet := constant(10, 64)

	if d.Observe(loud) {
		t.Fatalf("fired before hold frames")
	}
	if !d.Observe(loud) {
		t.Fatalf("did not fire after hold frames")
	}
	if d.Observe(loud) {
		t.Fatalf("fired twice for one utterance")
	}
	if d.Observe(quiet) {
		t.Fatalf("quiet frame fired")
	}
	d.Observe(loud)
	if !d.Observe(loud) {
		t.Fatalf("did not re-arm after silence")
	}
}

func TestSpeechDetectorReset(t *testing.T) {
	d := NewSpeechDetector(0.1, 2)
	loud := constant(8000, 64)

	d.Observe(loud)
	d.Reset()
	if d.Observe(loud) {
		t.Fatalf("hold count survived Reset")
	}
	if !d.Observe(loud) {
		t.Fatalf("did not fire after hold frames")
	}
	d.Reset()
	d.Observe(loud)
	if !d.Observe(loud) {
		t.Fatalf("Reset did not re-arm a fired detector")
	}
}

package audio

import "math"

const (
	DefaultSpeechThreshold  = 0.02
	DefaultSpeechHoldFrames = 2
)

// RMSEnergy computes the root-mean-square energy of PCM16 samples,
// normalized to 0..1.
func RMSEnergy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(PCM16ToFloat(s))
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// SpeechDetector is an energy gate over captured frames. It fires once
// after hold consecutive frames above threshold and re-arms when a frame
// falls below it.
type SpeechDetector struct {
	threshold float64
	hold      int
	above     int
	fired     bool
}

func NewSpeechDetector(threshold float64, hold int) *SpeechDetector {
	if threshold <= 0 {
		threshold = DefaultSpeechThreshold
	}
	if hold <= 0 {
		hold = DefaultSpeechHoldFrames
	}
	return &SpeechDetector{threshold: threshold, hold: hold}
}

// Observe feeds one frame and reports a speech onset.
func (d *SpeechDetector) Observe(samples []int16) bool {
	if RMSEnergy(samples) < d.threshold {
		d.above = 0
		d.fired = false
		return false
	}
	d.above++
	if d.fired || d.above < d.hold {
		return false
	}
	d.fired = true
	return true
}

func (d *SpeechDetector) Reset() {
	d.above = 0
	d.fired = false
}

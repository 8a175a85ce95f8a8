package audio

import (
	"github.com/dkeye/voicerelay/internal/domain"
)

// DefaultChunkSize matches the capture worklet's default frame length.
const DefaultChunkSize = 4096

// InterruptAck confirms that a chunker dropped its partial frame and
// switched to a new track.
type InterruptAck struct {
	TrackID   domain.TrackID
	Discarded int
}

// Chunker accumulates normalized float samples into fixed-size PCM16 frames.
// It is not safe for concurrent use; the capture recorder serializes access.
type Chunker struct {
	size    int
	buf     []float32
	n       int
	trackID domain.TrackID
	seq     uint64
}

func NewChunker(size int, trackID domain.TrackID) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if trackID == "" {
		trackID = domain.DefaultTrackID
	}
	return &Chunker{
		size:    size,
		buf:     make([]float32, size),
		trackID: trackID,
	}
}

func (c *Chunker) Size() int { return c.size }

func (c *Chunker) TrackID() domain.TrackID { return c.trackID }

// Buffered reports how many samples are waiting for the current frame.
func (c *Chunker) Buffered() int { return c.n }

// Push adds one sample and returns a frame when the buffer fills.
func (c *Chunker) Push(sample float32) (domain.AudioFrame, bool) {
	c.buf[c.n] = sample
	c.n++
	if c.n < c.size {
		return domain.AudioFrame{}, false
	}
	return c.emit(), true
}

// PushSamples feeds a whole callback buffer and returns every completed frame.
func (c *Chunker) PushSamples(in []float32) []domain.AudioFrame {
	var out []domain.AudioFrame
	for _, s := range in {
		if f, ok := c.Push(s); ok {
			out = append(out, f)
		}
	}
	return out
}

// Flush emits the partial frame, if any. Called once on stream termination.
func (c *Chunker) Flush() (domain.AudioFrame, bool) {
	if c.n == 0 {
		return domain.AudioFrame{}, false
	}
	return c.emit(), true
}

// Interrupt drops the partial frame and tags subsequent frames with trackID.
func (c *Chunker) Interrupt(trackID domain.TrackID) InterruptAck {
	if trackID == "" {
		trackID = domain.DefaultTrackID
	}
	ack := InterruptAck{TrackID: trackID, Discarded: c.n}
	c.n = 0
	c.trackID = trackID
	return ack
}

func (c *Chunker) emit() domain.AudioFrame {
	samples := make([]int16, c.n)
	for i := 0; i < c.n; i++ {
		samples[i] = FloatToPCM16(c.buf[i])
	}
	c.n = 0
	c.seq++
	return domain.AudioFrame{
		TrackID: c.trackID,
		Samples: samples,
		Seq:     c.seq,
	}
}

package audio

// TrackQueue is an ordered sample buffer for one track. Frames are consumed
// in arrival order and samples in index order; Offset counts every sample
// consumed so far.
type TrackQueue struct {
	frames    [][]int16
	head      int
	index     int
	offset    int64
	remaining int
}

func (q *TrackQueue) Enqueue(samples []int16) {
	if len(samples) == 0 {
		return
	}
	q.frames = append(q.frames, samples)
	q.remaining += len(samples)
}

// PeekSample returns the next sample without consuming it.
func (q *TrackQueue) PeekSample() (int16, bool) {
	if q.head >= len(q.frames) {
		return 0, false
	}
	return q.frames[q.head][q.index], true
}

// Advance consumes the sample PeekSample returned and pops the frame once
// its last sample is gone.
func (q *TrackQueue) Advance() {
	if q.head >= len(q.frames) {
		return
	}
	q.index++
	q.offset++
	q.remaining--
	if q.index < len(q.frames[q.head]) {
		return
	}
	q.frames[q.head] = nil
	q.head++
	q.index = 0
	q.compact()
}

func (q *TrackQueue) Offset() int64 { return q.offset }

// Len is the number of buffered, unconsumed samples.
func (q *TrackQueue) Len() int { return q.remaining }

func (q *TrackQueue) Empty() bool { return q.remaining == 0 }

// Reset drops buffered samples. The offset is kept.
func (q *TrackQueue) Reset() {
	q.frames = nil
	q.head = 0
	q.index = 0
	q.remaining = 0
}

func (q *TrackQueue) compact() {
	if q.head == len(q.frames) {
		q.frames = q.frames[:0]
		q.head = 0
		return
	}
	if q.head > 32 && q.head*2 > len(q.frames) {
		n := copy(q.frames, q.frames[q.head:])
		for i := n; i < len(q.frames); i++ {
			q.frames[i] = nil
		}
		q.frames = q.frames[:n]
		q.head = 0
	}
}

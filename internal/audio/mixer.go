package audio

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dkeye/voicerelay/internal/domain"
)

type track struct {
	id     domain.TrackID
	queue  TrackQueue
	status domain.TrackStatus
	ended  bool
}

// TrackInfo is a point-in-time view of one resident track.
type TrackInfo struct {
	ID       domain.TrackID
	Status   domain.TrackStatus
	Offset   int64
	Buffered int
}

// Stats are running counters read outside the audio domain.
type Stats struct {
	Callbacks  uint64
	Clipped    uint64
	Interrupts uint64
}

// Mixer sums every Active track into one output stream. Tracks are kept in
// creation order, which is also the order interrupts are resolved in.
// Interrupted and Completed tracks stay resident until Prune.
type Mixer struct {
	mu     sync.Mutex
	tracks []*track
	byID   map[domain.TrackID]*track
	closed bool

	interrupts *Coordinator

	callbacks   atomic.Uint64
	clipped     atomic.Uint64
	interrupted atomic.Uint64
}

func NewMixer(coord *Coordinator) *Mixer {
	if coord == nil {
		coord = NewCoordinator(DefaultInterruptTimeout)
	}
	return &Mixer{
		byID:       make(map[domain.TrackID]*track),
		interrupts: coord,
	}
}

// Enqueue hands frame ownership to the track's queue, creating the track on
// first sight of its id.
func (m *Mixer) Enqueue(frame domain.AudioFrame) error {
	id := frame.Track()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrEngineStopped
	}
	t, ok := m.byID[id]
	if !ok {
		t = &track{id: id, status: domain.TrackActive}
		m.tracks = append(m.tracks, t)
		m.byID[id] = t
	}
	switch {
	case t.status == domain.TrackInterrupted:
		return ErrTrackInterrupted
	case t.status == domain.TrackCompleted || t.ended:
		return ErrTrackCompleted
	}
	t.queue.Enqueue(frame.Samples)
	return nil
}

// EndTrack marks id as receiving no further frames. It completes once drained.
func (m *Mixer) EndTrack(id domain.TrackID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return
	}
	t.ended = true
	if t.status == domain.TrackActive && t.queue.Empty() {
		t.status = domain.TrackCompleted
	}
}

// Process fills out with the next mixed samples. Pending interrupts are
// resolved first so the resolved offset matches what has been played.
// Slots with no contributing track are silent.
func (m *Mixer) Process(out []int16) {
	m.callbacks.Add(1)
	m.interrupts.Service(m.resolve)

	m.mu.Lock()
	defer m.mu.Unlock()

	var clipped uint64
	for i := range out {
		var sum int32
		for _, t := range m.tracks {
			if t.status != domain.TrackActive {
				continue
			}
			s, ok := t.queue.PeekSample()
			if !ok {
				continue
			}
			sum += int32(s)
			t.queue.Advance()
		}
		v, clip := saturate(sum)
		if clip {
			clipped++
		}
		out[i] = v
	}
	if clipped > 0 {
		m.clipped.Add(clipped)
	}

	for _, t := range m.tracks {
		if t.status == domain.TrackActive && t.ended && t.queue.Empty() {
			t.status = domain.TrackCompleted
		}
	}
}

// resolve picks the first Active non-empty track in creation order and marks
// it Interrupted. No candidate resolves to Found=false.
func (m *Mixer) resolve(id domain.RequestID) domain.Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tracks {
		if t.status != domain.TrackActive || t.queue.Empty() {
			continue
		}
		t.status = domain.TrackInterrupted
		m.interrupted.Add(1)
		return domain.Resolution{
			RequestID: id,
			TrackID:   t.id,
			Offset:    t.queue.Offset(),
			Found:     true,
		}
	}
	return domain.Resolution{RequestID: id}
}

// Interrupt asks the audio callback to resolve and mute the current track.
func (m *Mixer) Interrupt(ctx context.Context) (domain.Resolution, error) {
	return m.interrupts.Interrupt(ctx)
}

func (m *Mixer) InterruptWithID(ctx context.Context, id domain.RequestID) (domain.Resolution, error) {
	return m.interrupts.InterruptWithID(ctx, id)
}

// IsActive reports whether track id is Active and has buffered samples.
func (m *Mixer) IsActive(id domain.TrackID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	return ok && t.status == domain.TrackActive && !t.queue.Empty()
}

// Playing reports whether any track would contribute to the next callback.
func (m *Mixer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tracks {
		if t.status == domain.TrackActive && !t.queue.Empty() {
			return true
		}
	}
	return false
}

func (m *Mixer) Tracks() []TrackInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrackInfo, 0, len(m.tracks))
	for _, t := range m.tracks {
		out = append(out, TrackInfo{
			ID:       t.id,
			Status:   t.status,
			Offset:   t.queue.Offset(),
			Buffered: t.queue.Len(),
		})
	}
	return out
}

// Prune removes every track that is no longer Active and returns the count.
func (m *Mixer) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.tracks[:0]
	removed := 0
	for _, t := range m.tracks {
		if t.status == domain.TrackActive {
			kept = append(kept, t)
			continue
		}
		delete(m.byID, t.id)
		removed++
	}
	for i := len(kept); i < len(m.tracks); i++ {
		m.tracks[i] = nil
	}
	m.tracks = kept
	return removed
}

// Close completes every Active track and stops the coordinator. Further
// enqueues fail with ErrEngineStopped.
func (m *Mixer) Close() {
	m.mu.Lock()
	m.closed = true
	for _, t := range m.tracks {
		if t.status == domain.TrackActive {
			t.status = domain.TrackCompleted
			t.queue.Reset()
		}
	}
	m.mu.Unlock()
	m.interrupts.Stop()
}

func (m *Mixer) Stats() Stats {
	return Stats{
		Callbacks:  m.callbacks.Load(),
		Clipped:    m.clipped.Load(),
		Interrupts: m.interrupted.Load(),
	}
}

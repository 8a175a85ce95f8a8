package domain

// AudioFrame is one batch of PCM16 samples for a single track.
// Frames are immutable once built; the producer hands ownership to the
// consumer on enqueue.
type AudioFrame struct {
	TrackID TrackID
	Samples []int16
	Seq     uint64
}

// Track returns the frame's track id, falling back to DefaultTrackID.
func (f AudioFrame) Track() TrackID {
	if f.TrackID == "" {
		return DefaultTrackID
	}
	return f.TrackID
}

type TrackStatus int32

const (
	TrackActive TrackStatus = iota
	TrackInterrupted
	TrackCompleted
)

func (s TrackStatus) String() string {
	switch s {
	case TrackActive:
		return "active"
	case TrackInterrupted:
		return "interrupted"
	case TrackCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of one interrupt request. Found is false when
// no track was playing at the moment the request was serviced.
type Resolution struct {
	RequestID RequestID
	TrackID   TrackID
	Offset    int64
	Found     bool
}

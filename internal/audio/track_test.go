package audio

import "testing"

func TestTrackQueueOrderAndOffset(t *testing.T) {
	var q TrackQueue
	q.Enqueue([]int16{1, 2, 3})
	q.Enqueue(nil)
	q.Enqueue([]int16{4})
	q.Enqueue([]int16{5, 6})

	if q.Len() != 6 {
		t.Fatalf("Len = %d, want 6", q.Len())
	}
	for want := int16(1); want <= 6; want++ {
		s, ok := q.PeekSample()
		if !ok || s != want {
			t.Fatalf("PeekSample = %d,%v, want %d", s, ok, want)
		}
		before := q.Offset()
		q.Advance()
		if q.Offset() != before+1 {
			t.Fatalf("offset moved from %d to %d", before, q.Offset())
		}
	}
	if _, ok := q.PeekSample(); ok {
		t.Fatalf("queue should be empty")
	}
	q.Advance()
	if q.Offset() != 6 {
		t.Fatalf("Advance on empty queue moved offset to %d", q.Offset())
	}
}

func TestTrackQueueCompacts(t *testing.T) {
	var q TrackQueue
	for i := 0; i < 1000; i++ {
		q.Enqueue([]int16{int16(i)})
		if i%2 == 1 {
			q.Advance()
		}
	}
	if q.Len() != 500 {
		t.Fatalf("Len = %d, want 500", q.Len())
	}
	s, _ := q.PeekSample()
	if s != 500 {
		t.Fatalf("head sample = %d, want 500", s)
	}
	if len(q.frames)-q.head != 500 {
		t.Fatalf("frame bookkeeping off: %d live", len(q.frames)-q.head)
	}
}

func TestTrackQueueResetKeepsOffset(t *testing.T) {
	var q TrackQueue
	q.Enqueue([]int16{1, 2, 3})
	q.Advance()
	q.Reset()
	if !q.Empty() || q.Offset() != 1 {
		t.Fatalf("Reset: empty=%v offset=%d", q.Empty(), q.Offset())
	}
}

package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/voicerelay/internal/domain"
)

type fakeInput struct {
	mu    sync.Mutex
	push  func([]float32)
	err   error
	stops int
}

func (f *fakeInput) Start(push func([]float32)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.push = push
	return nil
}

func (f *fakeInput) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeInput) feed(samples ...float32) {
	f.mu.Lock()
	push := f.push
	f.mu.Unlock()
	push(samples)
}

func drain(ch <-chan domain.AudioFrame) []domain.AudioFrame {
	var out []domain.AudioFrame
	for f := range ch {
		out = append(out, f)
	}
	return out
}

func TestRecorderFramesAndFlush(t *testing.T) {
	dev := &fakeInput{}
	r := NewRecorder(dev, Config{ChunkSize: 4}, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	dev.feed(1, 1, 1, 1, 0.5, 0.5)
	dev.feed(-1, -1, -1)
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	frames := drain(r.Frames())
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if len(frames[0].Samples) != 4 || frames[0].Samples[0] != 32767 {
		t.Fatalf("first frame %+v", frames[0])
	}
	if frames[1].Samples[3] != -32768 {
		t.Fatalf("second frame %+v", frames[1])
	}
	if len(frames[2].Samples) != 1 || frames[2].Samples[0] != -32768 {
		t.Fatalf("flushed frame %+v", frames[2])
	}
	if dev.stops != 1 {
		t.Fatalf("device stopped %d times", dev.stops)
	}
	if r.Stop() != nil || dev.stops != 1 {
		t.Fatalf("second stop should be a no-op")
	}
}

func TestRecorderInterruptRetags(t *testing.T) {
	dev := &fakeInput{}
	r := NewRecorder(dev, Config{ChunkSize: 2, TrackID: "mic-1"}, nil)
	r.Start(context.Background())
	dev.feed(0.1, 0.1, 0.9)
	ack := r.Interrupt("mic-2")
	if ack.TrackID != "mic-2" || ack.Discarded != 1 {
		t.Fatalf("ack %+v", ack)
	}
	dev.feed(0.2, 0.2)
	r.Stop()

	frames := drain(r.Frames())
	if len(frames) != 2 || frames[0].TrackID != "mic-1" || frames[1].TrackID != "mic-2" {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestRecorderDropsOnBackpressure(t *testing.T) {
	dev := &fakeInput{}
	r := NewRecorder(dev, Config{ChunkSize: 1, Backlog: 2}, nil)
	r.Start(context.Background())
	dev.feed(0.1, 0.2, 0.3, 0.4, 0.5)
	if got := r.Dropped(); got != 3 {
		t.Fatalf("dropped %d, want 3", got)
	}
	r.Stop()
	if frames := drain(r.Frames()); len(frames) != 2 {
		t.Fatalf("delivered %d frames", len(frames))
	}
}

func TestRecorderStopsWithContext(t *testing.T) {
	dev := &fakeInput{}
	r := NewRecorder(dev, Config{ChunkSize: 8}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	dev.feed(0.3)
	cancel()

	select {
	case f, ok := <-r.Frames():
		if !ok || len(f.Samples) != 1 {
			t.Fatalf("expected flushed partial frame, got %+v ok=%v", f, ok)
		}
	case <-time.After(time.Second):
		t.Fatalf("recorder did not stop with its context")
	}
	if _, ok := <-r.Frames(); ok {
		t.Fatalf("frames channel not closed")
	}
	dev.feed(0.5)
}

func TestRecorderStartError(t *testing.T) {
	r := NewRecorder(&fakeInput{err: errors.New("busy")}, Config{}, nil)
	if err := r.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := <-r.Frames(); ok {
		t.Fatalf("frames channel not closed")
	}
}

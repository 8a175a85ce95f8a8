package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/voicerelay/internal/core"
)

type fakeConn struct {
	in      chan core.Frame
	wrote   chan core.Frame
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	written []string

	// block, when set, holds every write until it is closed. Held writes
	// are announced on attempts.
	block    chan struct{}
	attempts chan core.Frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:       make(chan core.Frame, 16),
		wrote:    make(chan core.Frame, 64),
		closed:   make(chan struct{}),
		attempts: make(chan core.Frame, 64),
	}
}

func (c *fakeConn) ReadFrame() (core.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteFrame(f core.Frame) error {
	select {
	case <-c.closed:
		return errors.New("write on closed conn")
	default:
	}
	if c.block != nil {
		c.attempts <- f
		select {
		case <-c.block:
		case <-c.closed:
			return errors.New("write on closed conn")
		}
	}
	c.mu.Lock()
	c.written = append(c.written, string(f))
	c.mu.Unlock()
	c.wrote <- f
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type fakeDialer struct {
	gate     chan struct{}
	up       *fakeConn
	err      error
	canceled chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		gate:     make(chan struct{}),
		up:       newFakeConn(),
		canceled: make(chan struct{}),
	}
}

func (d *fakeDialer) Dial(ctx context.Context) (core.Upstream, error) {
	select {
	case <-d.gate:
	case <-ctx.Done():
		close(d.canceled)
		return nil, ctx.Err()
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.up, nil
}

func expectFrame(t *testing.T, ch <-chan core.Frame, want string) {
	t.Helper()
	select {
	case f := <-ch:
		if string(f) != want {
			t.Fatalf("got %s, want %s", f, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

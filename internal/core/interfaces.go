package core

import "context"

// Frame is a raw text payload (one JSON message).
type Frame []byte

// SignalConnection abstracts a non-blocking outbound message transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MessageConn is a duplex message transport. ReadFrame blocks until a
// message arrives; Close unblocks a pending ReadFrame.
type MessageConn interface {
	ReadFrame() (Frame, error)
	WriteFrame(Frame) error
	Close() error
}

// Downstream is the accepted client side of a relay session.
type Downstream interface {
	MessageConn
}

// Upstream is the relay's outbound connection to the conversational engine.
type Upstream interface {
	MessageConn
}

// Dialer opens one upstream connection. Cancelling ctx aborts the dial.
type Dialer interface {
	Dial(ctx context.Context) (Upstream, error)
}

// OutputDevice pulls samples through fill on its own clock.
// fill must never block.
type OutputDevice interface {
	Start(fill func(out []int16)) error
	Stop() error
}

// InputDevice pushes captured samples, normalized to [-1,1], through push.
type InputDevice interface {
	Start(push func(in []float32)) error
	Stop() error
}

// Package relay multiplexes client connections onto upstream connections,
// one upstream per session.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/dkeye/voicerelay/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionClosed   = errors.New("relay: session closed")
	ErrUpstreamConnect = errors.New("relay: upstream connect failed")
)

// Close reasons, also used as metric labels.
const (
	ReasonDownstreamClosed = "downstream_closed"
	ReasonUpstreamClosed   = "upstream_closed"
	ReasonUpstreamConnect  = "upstream_connect"
	ReasonWriteFailed      = "write_failed"
	ReasonShutdown         = "shutdown"
)

// Session relays one client connection to its own upstream connection.
//
// Inbound messages that arrive while the upstream dial is in flight
// (Connecting) are queued. Once the dial succeeds the backlog is drained in
// arrival order (Queueing); messages arriving during the drain still go to
// the tail. When the backlog is empty the session passes messages straight
// through (Relaying). Either side closing tears down both (Closed).
type Session struct {
	id      domain.SessionID
	down    core.Downstream
	dialer  core.Dialer
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu      sync.Mutex
	state   domain.SessionState
	pending []core.Frame
	up      core.Upstream
	reason  string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(id domain.SessionID, down core.Downstream, dialer core.Dialer, m *metrics.Metrics) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:      id,
		down:    down,
		dialer:  dialer,
		metrics: m,
		logger:  log.With().Str("module", "relay").Str("sid", string(id)).Logger(),
		state:   domain.SessionConnecting,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (s *Session) ID() domain.SessionID { return s.id }

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending is the number of queued inbound messages.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Done is closed once the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run reads the client, dials upstream and relays until either side closes
// or ctx ends. It returns ErrUpstreamConnect when the dial fails.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close(ReasonShutdown) })
	defer stop()

	go s.readDownstream()

	start := time.Now()
	up, err := s.dialer.Dial(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return ErrSessionClosed
		}
		s.logger.Error().Err(err).Msg("upstream connect failed")
		s.Close(ReasonUpstreamConnect)
		return fmt.Errorf("%w: %v", ErrUpstreamConnect, err)
	}
	if s.metrics != nil {
		s.metrics.UpstreamDialTime.Observe(time.Since(start).Seconds())
	}
	if err := s.attach(up); err != nil {
		return err
	}
	s.logger.Info().Dur("dial", time.Since(start)).Msg("upstream connected")

	go s.readUpstream(up)
	s.drain(up)

	<-s.done
	return nil
}

// attach binds the upstream unless the session closed during the dial.
func (s *Session) attach(up core.Upstream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionClosed {
		up.Close()
		return ErrSessionClosed
	}
	s.up = up
	s.state = domain.SessionQueueing
	return nil
}

// drain forwards the backlog in arrival order, then switches to Relaying.
func (s *Session) drain(up core.Upstream) {
	for {
		s.mu.Lock()
		if s.state != domain.SessionQueueing {
			s.mu.Unlock()
			return
		}
		batch := s.pending
		s.pending = nil
		if len(batch) == 0 {
			s.state = domain.SessionRelaying
			s.mu.Unlock()
			s.logger.Debug().Msg("backlog drained, relaying")
			return
		}
		s.mu.Unlock()

		for _, f := range batch {
			if err := s.forward(up, f); err != nil {
				return
			}
		}
	}
}

// OnInbound accepts one message from the client side. It is called only
// from the downstream reader, so upstream writes stay ordered without
// holding the lock.
func (s *Session) OnInbound(data core.Frame) error {
	s.mu.Lock()
	switch s.state {
	case domain.SessionConnecting, domain.SessionQueueing:
		s.pending = append(s.pending, data)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.MessagesQueued.Inc()
		}
		return nil
	case domain.SessionRelaying:
		up := s.up
		s.mu.Unlock()
		return s.forward(up, data)
	default:
		s.mu.Unlock()
		return ErrSessionClosed
	}
}

// forward validates the envelope and writes it upstream. Malformed
// messages are dropped; a write failure closes the session.
func (s *Session) forward(up core.Upstream, data core.Frame) error {
	typ, err := protocol.PeekType(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("dropping malformed inbound message")
		s.dropped("malformed", 1)
		return nil
	}
	if err := up.WriteFrame(data); err != nil {
		s.logger.Error().Err(err).Str("type", typ).Msg("upstream write failed")
		s.Close(ReasonWriteFailed)
		return fmt.Errorf("upstream write: %w", err)
	}
	s.logger.Debug().Str("type", typ).Msg("relaying to upstream")
	s.relayed("upstream")
	return nil
}

func (s *Session) readDownstream() {
	for {
		data, err := s.down.ReadFrame()
		if err != nil {
			s.Close(ReasonDownstreamClosed)
			return
		}
		if err := s.OnInbound(data); errors.Is(err, ErrSessionClosed) {
			return
		}
	}
}

// readUpstream is the single writer to the client side.
func (s *Session) readUpstream(up core.Upstream) {
	for {
		data, err := up.ReadFrame()
		if err != nil {
			s.Close(ReasonUpstreamClosed)
			return
		}
		if err := s.down.WriteFrame(data); err != nil {
			s.logger.Error().Err(err).Msg("downstream write failed")
			s.Close(ReasonWriteFailed)
			return
		}
		if e := s.logger.Debug(); e.Enabled() {
			typ, _ := protocol.PeekType(data)
			e.Str("type", typ).Msg("relaying to client")
		}
		s.relayed("downstream")
	}
}

// Close tears down both ends exactly once and discards the backlog.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = domain.SessionClosed
		discarded := len(s.pending)
		s.pending = nil
		s.reason = reason
		up := s.up
		s.mu.Unlock()

		s.cancel()
		s.down.Close()
		if up != nil {
			up.Close()
		}
		if discarded > 0 {
			s.dropped("discarded", discarded)
		}
		if s.metrics != nil {
			s.metrics.SessionsClosed.WithLabelValues(reason).Inc()
		}
		s.logger.Info().Str("reason", reason).Int("discarded", discarded).Msg("session closed")
		close(s.done)
	})
}

// Reason reports why the session closed, empty while it is open.
func (s *Session) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

func (s *Session) relayed(direction string) {
	if s.metrics != nil {
		s.metrics.MessagesRelayed.WithLabelValues(direction).Inc()
	}
}

func (s *Session) dropped(reason string, n int) {
	if s.metrics != nil {
		s.metrics.MessagesDropped.WithLabelValues(reason).Add(float64(n))
	}
}

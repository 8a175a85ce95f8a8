// Package playback owns the output side of the voice pipeline: the mixer,
// its interrupt coordinator and the output device lifecycle.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/voicerelay/internal/audio"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/dkeye/voicerelay/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	InterruptTimeout time.Duration
	// StatsPeriod controls how often callback counters are reported.
	StatsPeriod time.Duration
}

// Engine is an explicitly owned playback pipeline. It is started and
// stopped by its caller and cannot be restarted after Stop.
type Engine struct {
	device  core.OutputDevice
	mixer   *audio.Mixer
	metrics *metrics.Metrics
	logger  zerolog.Logger
	period  time.Duration

	seq      atomic.Uint64
	failures atomic.Uint64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewEngine(device core.OutputDevice, cfg Config, m *metrics.Metrics) *Engine {
	if cfg.StatsPeriod <= 0 {
		cfg.StatsPeriod = time.Second
	}
	return &Engine{
		device:  device,
		mixer:   audio.NewMixer(audio.NewCoordinator(cfg.InterruptTimeout)),
		metrics: m,
		logger:  log.With().Str("module", "playback").Logger(),
		period:  cfg.StatsPeriod,
	}
}

func (e *Engine) Mixer() *audio.Mixer { return e.mixer }

// Start opens the output device. The engine stops itself when ctx ends.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return audio.ErrEngineStopped
	}
	if e.started {
		return nil
	}
	if err := e.device.Start(e.fill); err != nil {
		return fmt.Errorf("start output device: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	e.started = true
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.supervise(ctx)
	e.logger.Info().Msg("playback started")
	return nil
}

// Stop releases the device and completes every resident track. Safe to
// call more than once.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	started := e.started
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	var err error
	if started {
		cancel()
		<-done
		if derr := e.device.Stop(); derr != nil {
			err = fmt.Errorf("stop output device: %w", derr)
		}
	}
	e.mixer.Close()
	e.logger.Info().Uint64("callbacks", e.mixer.Stats().Callbacks).Msg("playback stopped")
	return err
}

// fill runs on the device clock. A failing mix plays silence.
func (e *Engine) fill(out []int16) {
	defer func() {
		if r := recover(); r != nil {
			clear(out)
			e.failures.Add(1)
		}
	}()
	e.mixer.Process(out)
}

func (e *Engine) supervise(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	var last audio.Stats
	var lastFailures uint64
	report := func() {
		st := e.mixer.Stats()
		failures := e.failures.Load()
		if failures > lastFailures {
			e.logger.Error().Uint64("failures", failures-lastFailures).Msg("output callback failed, played silence")
		}
		if e.metrics != nil {
			e.metrics.Callbacks.Add(float64(st.Callbacks - last.Callbacks))
			e.metrics.ClippedSamples.Add(float64(st.Clipped - last.Clipped))
			e.metrics.CallbackFailures.Add(float64(failures - lastFailures))
			e.metrics.ResidentTracks.Set(float64(len(e.mixer.Tracks())))
		}
		last, lastFailures = st, failures
	}
	for {
		select {
		case <-ctx.Done():
			report()
			go e.Stop()
			return
		case <-ticker.C:
			report()
		}
	}
}

func (e *Engine) Enqueue(frame domain.AudioFrame) error {
	if frame.Seq == 0 {
		frame.Seq = e.seq.Add(1)
	}
	return e.mixer.Enqueue(frame)
}

func (e *Engine) EndTrack(id domain.TrackID) { e.mixer.EndTrack(id) }

// Prune drops tracks that will never play again.
func (e *Engine) Prune() int { return e.mixer.Prune() }

func (e *Engine) Playing() bool { return e.mixer.Playing() }

// Interrupt resolves and mutes the current track.
func (e *Engine) Interrupt(ctx context.Context, id domain.RequestID) (domain.Resolution, error) {
	if id == "" {
		id = domain.NewRequestID()
	}
	start := time.Now()
	res, err := e.mixer.InterruptWithID(ctx, id)
	l := e.logger.With().Str("request_id", string(id)).Logger()
	switch {
	case err != nil:
		e.observeInterrupt(start, "error")
		l.Warn().Err(err).Msg("interrupt not resolved")
		return res, err
	case !res.Found:
		e.observeInterrupt(start, "none")
		l.Debug().Msg("interrupt with no active track")
	default:
		e.observeInterrupt(start, "resolved")
		l.Info().Str("track_id", string(res.TrackID)).Int64("offset", res.Offset).Msg("track interrupted")
	}
	return res, nil
}

func (e *Engine) observeInterrupt(start time.Time, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.Interrupts.WithLabelValues(outcome).Inc()
	e.metrics.InterruptWait.Observe(time.Since(start).Seconds())
}

// HandleMessage applies one local protocol message. Interrupts return the
// encoded interrupt-ack as reply.
func (e *Engine) HandleMessage(ctx context.Context, data []byte) ([]byte, error) {
	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case *protocol.AudioData:
		err := e.Enqueue(domain.AudioFrame{TrackID: domain.TrackID(m.TrackID), Samples: m.AudioData})
		if errors.Is(err, audio.ErrTrackInterrupted) {
			e.logger.Debug().Str("track_id", m.TrackID).Msg("dropped frame for interrupted track")
		}
		return nil, err
	case *protocol.TrackEnd:
		e.EndTrack(domain.TrackID(m.TrackID))
		return nil, nil
	case *protocol.Interrupt:
		res, err := e.Interrupt(ctx, domain.RequestID(m.RequestID))
		if err != nil {
			return nil, err
		}
		return protocol.Encode(protocol.NewInterruptAck(string(res.RequestID), string(res.TrackID), res.Offset))
	case *protocol.InterruptAck:
		// Acks are produced here, never consumed.
		return nil, nil
	}
	return nil, protocol.ErrUnknownMessage
}

// Package capture turns microphone callbacks into PCM16 frames.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/voicerelay/internal/audio"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultBacklog = 32
	flushTimeout   = time.Second
)

type Config struct {
	ChunkSize int
	TrackID   domain.TrackID
	// Backlog is the number of frames buffered for the consumer.
	Backlog int
}

// Recorder owns the chunker and the input device. Completed frames are
// delivered on Frames; the channel is closed after Stop.
type Recorder struct {
	device  core.InputDevice
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu      sync.Mutex
	chunker *audio.Chunker
	frames  chan domain.AudioFrame
	quit    chan struct{}
	started bool
	stopped bool
	dropped uint64
}

func NewRecorder(device core.InputDevice, cfg Config, m *metrics.Metrics) *Recorder {
	if cfg.Backlog <= 0 {
		cfg.Backlog = defaultBacklog
	}
	return &Recorder{
		device:  device,
		metrics: m,
		logger:  log.With().Str("module", "capture").Logger(),
		chunker: audio.NewChunker(cfg.ChunkSize, cfg.TrackID),
		frames:  make(chan domain.AudioFrame, cfg.Backlog),
		quit:    make(chan struct{}),
	}
}

func (r *Recorder) Frames() <-chan domain.AudioFrame { return r.frames }

// Start opens the input device. The recorder stops itself when ctx ends.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return audio.ErrEngineStopped
	}
	if r.started {
		return nil
	}
	if err := r.device.Start(r.push); err != nil {
		return fmt.Errorf("start input device: %w", err)
	}
	r.started = true
	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-r.quit:
		}
	}()
	r.logger.Info().Int("chunk_size", r.chunker.Size()).Msg("capture started")
	return nil
}

// push runs on the device clock and never blocks; frames the consumer
// cannot take are dropped and counted.
func (r *Recorder) push(in []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	for _, f := range r.chunker.PushSamples(in) {
		select {
		case r.frames <- f:
			r.observe(true)
		default:
			r.dropped++
			r.observe(false)
		}
	}
}

func (r *Recorder) observe(delivered bool) {
	if r.metrics == nil {
		return
	}
	if delivered {
		r.metrics.FramesCaptured.Inc()
	} else {
		r.metrics.FramesDropped.Inc()
	}
}

// Interrupt drops the partial frame and tags later frames with trackID.
func (r *Recorder) Interrupt(trackID domain.TrackID) audio.InterruptAck {
	r.mu.Lock()
	defer r.mu.Unlock()
	ack := r.chunker.Interrupt(trackID)
	r.logger.Debug().Str("track_id", string(ack.TrackID)).Int("discarded", ack.Discarded).Msg("capture interrupted")
	return ack
}

// Stop releases the device, flushes the partial frame and closes Frames.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	started := r.started
	close(r.quit)
	r.mu.Unlock()

	var err error
	if started {
		if derr := r.device.Stop(); derr != nil {
			err = fmt.Errorf("stop input device: %w", derr)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.chunker.Flush(); ok {
		timer := time.NewTimer(flushTimeout)
		select {
		case r.frames <- f:
			r.observe(true)
		case <-timer.C:
			r.dropped++
			r.observe(false)
			r.logger.Warn().Int("samples", len(f.Samples)).Msg("final frame dropped, consumer not reading")
		}
		timer.Stop()
	}
	close(r.frames)
	r.logger.Info().Uint64("dropped", r.dropped).Msg("capture stopped")
	return err
}

// Dropped is the number of frames lost to backpressure.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

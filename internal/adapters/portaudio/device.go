// Package portaudio provides callback-driven capture and playback devices.
package portaudio

import (
	"errors"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"
)

var ErrNotStarted = errors.New("stream not started")

type Config struct {
	SampleRate      float64
	FramesPerBuffer int
}

type stream struct {
	mu     sync.Mutex
	config Config
	pa     *pa.Stream
}

func (s *stream) open(in, out int, callback any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pa != nil {
		return nil
	}
	if err := pa.Initialize(); err != nil {
		return fmt.Errorf("portaudio initialize: %w", err)
	}
	st, err := pa.OpenDefaultStream(in, out, s.config.SampleRate, s.config.FramesPerBuffer, callback)
	if err != nil {
		pa.Terminate()
		return fmt.Errorf("open stream: %w", err)
	}
	if err := st.Start(); err != nil {
		st.Close()
		pa.Terminate()
		return fmt.Errorf("start stream: %w", err)
	}
	s.pa = st
	return nil
}

// close stops the stream and releases portaudio on every path.
func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pa == nil {
		return ErrNotStarted
	}
	st := s.pa
	s.pa = nil
	err := st.Stop()
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	if terr := pa.Terminate(); err == nil {
		err = terr
	}
	return err
}

// Output plays mono PCM16 pulled from fill on the device clock.
type Output struct{ stream }

func NewOutput(config Config) *Output {
	return &Output{stream{config: config}}
}

func (o *Output) Start(fill func(out []int16)) error {
	return o.open(0, 1, func(out []int16) { fill(out) })
}

func (o *Output) Stop() error { return o.close() }

// Input captures mono samples normalized to [-1,1].
type Input struct{ stream }

func NewInput(config Config) *Input {
	return &Input{stream{config: config}}
}

func (i *Input) Start(push func(in []float32)) error {
	return i.open(1, 0, func(in []float32) { push(in) })
}

func (i *Input) Stop() error { return i.close() }

package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVRecorder dumps mono PCM16 frames into a WAV file.
type WAVRecorder struct {
	file       *os.File
	enc        *wav.Encoder
	sampleRate int
	samples    int
}

func CreateWAV(path string, sampleRate int) (*WAVRecorder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav: invalid sample rate %d", sampleRate)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	return &WAVRecorder{
		file:       file,
		enc:        wav.NewEncoder(file, sampleRate, 16, 1, 1),
		sampleRate: sampleRate,
	}, nil
}

func (w *WAVRecorder) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: w.sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	w.samples += len(samples)
	return nil
}

// Samples is the number of samples written so far.
func (w *WAVRecorder) Samples() int { return w.samples }

func (w *WAVRecorder) Close() error {
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return w.file.Close()
}

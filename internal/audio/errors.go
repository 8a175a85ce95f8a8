package audio

import "errors"

var (
	ErrInterruptTimeout = errors.New("audio: interrupt resolution timed out")
	ErrEngineStopped    = errors.New("audio: engine stopped")
	ErrTrackInterrupted = errors.New("audio: track interrupted")
	ErrTrackCompleted   = errors.New("audio: track completed")
	ErrInterruptBusy    = errors.New("audio: too many pending interrupts")
)

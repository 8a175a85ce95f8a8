// Package protocol defines the JSON messages exchanged between the voice
// client, the playback engine and the relay.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeAudioData    = "audio-data"
	TypeTrackEnd     = "track-end"
	TypeInterrupt    = "interrupt"
	TypeInterruptAck = "interrupt-ack"
)

var (
	ErrMalformed      = errors.New("protocol: malformed envelope")
	ErrUnknownMessage = errors.New("protocol: unknown message type")
)

// Envelope is the part every message shares.
type Envelope struct {
	Type string `json:"type"`
}

type AudioData struct {
	Type      string  `json:"type"`
	AudioData []int16 `json:"audioData"`
	TrackID   string  `json:"trackId,omitempty"`
}

type TrackEnd struct {
	Type    string `json:"type"`
	TrackID string `json:"trackId"`
}

type Interrupt struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
}

// InterruptAck carries the resolved track and offset. An empty TrackID
// means nothing was playing.
type InterruptAck struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
	TrackID   string `json:"trackId"`
	Offset    int64  `json:"offset"`
}

// PeekType validates that data is a JSON object with a non-empty type.
func PeekType(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env.Type, nil
}

// Decode parses one local message into its typed form.
func Decode(data []byte) (any, error) {
	typ, err := PeekType(data)
	if err != nil {
		return nil, err
	}
	var msg any
	switch typ {
	case TypeAudioData:
		msg = &AudioData{}
	case TypeTrackEnd:
		msg = &TrackEnd{}
	case TypeInterrupt:
		msg = &Interrupt{}
	case TypeInterruptAck:
		msg = &InterruptAck{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, typ)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
	}
	return msg, nil
}

func NewAudioData(trackID string, samples []int16) AudioData {
	return AudioData{Type: TypeAudioData, AudioData: samples, TrackID: trackID}
}

func NewTrackEnd(trackID string) TrackEnd {
	return TrackEnd{Type: TypeTrackEnd, TrackID: trackID}
}

func NewInterrupt(requestID string) Interrupt {
	return Interrupt{Type: TypeInterrupt, RequestID: requestID}
}

func NewInterruptAck(requestID, trackID string, offset int64) InterruptAck {
	return InterruptAck{Type: TypeInterruptAck, RequestID: requestID, TrackID: trackID, Offset: offset}
}

// Encode marshals msg.
func Encode(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %T: %w", msg, err)
	}
	return b, nil
}

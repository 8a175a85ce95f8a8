package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/voicerelay/internal/audio"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Player is the playback side the bridge feeds.
type Player interface {
	HandleMessage(ctx context.Context, data []byte) ([]byte, error)
	Prune() int
}

// Bridge converts upstream events into local playback messages and local
// audio and interrupt results into upstream events.
type Bridge struct {
	player     Player
	out        core.SignalConnection
	sampleRate int
	logger     zerolog.Logger
}

func NewBridge(player Player, out core.SignalConnection, sampleRate int) *Bridge {
	return &Bridge{
		player:     player,
		out:        out,
		sampleRate: sampleRate,
		logger:     log.With().Str("module", "realtime").Logger(),
	}
}

// HandleUpstream applies one event received from the relay.
func (b *Bridge) HandleUpstream(ctx context.Context, data core.Frame) error {
	typ, err := protocol.PeekType(data)
	if err != nil {
		return err
	}
	switch typ {
	case EventAudioDelta:
		var ev audioDelta
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", typ, err)
		}
		raw, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return fmt.Errorf("decode %s audio: %w", typ, err)
		}
		_, err = b.deliver(ctx, protocol.NewAudioData(ev.ItemID, audio.DecodePCM16LE(raw)))
		if errors.Is(err, audio.ErrTrackInterrupted) {
			return nil
		}
		return err
	case EventAudioDone:
		var ev audioDone
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", typ, err)
		}
		_, err := b.deliver(ctx, protocol.NewTrackEnd(ev.ItemID))
		return err
	case EventResponseStart:
		if n := b.player.Prune(); n > 0 {
			b.logger.Debug().Int("tracks", n).Msg("pruned finished tracks")
		}
		return nil
	case EventSpeechStarted:
		_, err := b.Interrupt(ctx)
		return err
	case EventError:
		var ev errorEvent
		_ = json.Unmarshal(data, &ev)
		b.logger.Error().Str("code", ev.Error.Code).Str("error_type", ev.Error.Type).Msg(ev.Error.Message)
		return nil
	default:
		b.logger.Debug().Str("type", typ).Msg("upstream event")
		return nil
	}
}

// Interrupt resolves the playing track and, if one was cut off, cancels the
// response and truncates the item at the heard offset.
func (b *Bridge) Interrupt(ctx context.Context) (domain.Resolution, error) {
	id := domain.NewRequestID()
	reply, err := b.deliver(ctx, protocol.NewInterrupt(string(id)))
	if err != nil {
		return domain.Resolution{}, err
	}
	var ack protocol.InterruptAck
	if err := json.Unmarshal(reply, &ack); err != nil {
		return domain.Resolution{}, fmt.Errorf("decode interrupt-ack: %w", err)
	}
	res := domain.Resolution{
		RequestID: domain.RequestID(ack.RequestID),
		TrackID:   domain.TrackID(ack.TrackID),
		Offset:    ack.Offset,
		Found:     ack.TrackID != "",
	}
	if !res.Found {
		return res, nil
	}
	if err := b.send(cancelEvent{Type: EventCancel}); err != nil {
		return res, err
	}
	err = b.send(truncateEvent{
		Type:         EventTruncate,
		ItemID:       ack.TrackID,
		ContentIndex: 0,
		AudioEndMS:   b.offsetMS(ack.Offset),
	})
	return res, err
}

// deliver hands one local message to the player.
func (b *Bridge) deliver(ctx context.Context, msg any) ([]byte, error) {
	data, err := protocol.Encode(msg)
	if err != nil {
		return nil, err
	}
	return b.player.HandleMessage(ctx, data)
}

func (b *Bridge) offsetMS(samples int64) int64 {
	if b.sampleRate <= 0 {
		return 0
	}
	return samples * 1000 / int64(b.sampleRate)
}

// SendAudio appends a captured frame to the upstream input buffer.
func (b *Bridge) SendAudio(frame domain.AudioFrame) error {
	return b.send(appendEvent{
		Type:  EventAppend,
		Audio: base64.StdEncoding.EncodeToString(audio.EncodePCM16LE(frame.Samples)),
	})
}

// Configure selects PCM16 in both directions and server-side turn detection.
func (b *Bridge) Configure() error {
	return b.send(sessionUpdate{
		Type: EventSessionUpdate,
		Session: sessionConfig{
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			TurnDetection: &turnDetection{
				Type:              "server_vad",
				Threshold:         0.9,
				PrefixPaddingMS:   300,
				SilenceDurationMS: 1000,
			},
		},
	})
}

func (b *Bridge) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.out.TrySend(data)
}

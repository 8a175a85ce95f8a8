package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/dkeye/voicerelay/internal/audio"
	"github.com/dkeye/voicerelay/internal/core"
	"github.com/dkeye/voicerelay/internal/domain"
	"github.com/dkeye/voicerelay/internal/protocol"
)

type fakePlayer struct {
	got    []any
	ack    protocol.InterruptAck
	pruned int
	err    error
}

func (p *fakePlayer) HandleMessage(_ context.Context, data []byte) ([]byte, error) {
	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, err
	}
	p.got = append(p.got, msg)
	if in, ok := msg.(*protocol.Interrupt); ok {
		ack := p.ack
		ack.Type = protocol.TypeInterruptAck
		ack.RequestID = in.RequestID
		return protocol.Encode(ack)
	}
	return nil, p.err
}

func (p *fakePlayer) Prune() int {
	p.pruned++
	return 0
}

type fakeSender struct{ sent []map[string]any }

func (s *fakeSender) TrySend(f core.Frame) error {
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	s.sent = append(s.sent, m)
	return nil
}

func (s *fakeSender) Close() {}

func TestBridgeAudioDeltaAndDone(t *testing.T) {
	p := &fakePlayer{}
	b := NewBridge(p, &fakeSender{}, 24000)
	ctx := context.Background()

	pcm := base64.StdEncoding.EncodeToString(audio.EncodePCM16LE([]int16{1, -1, 300}))
	delta := `{"type":"response.audio.delta","item_id":"item_9","delta":"` + pcm + `"}`
	if err := b.HandleUpstream(ctx, core.Frame(delta)); err != nil {
		t.Fatalf("delta: %v", err)
	}
	if err := b.HandleUpstream(ctx, core.Frame(`{"type":"response.audio.done","item_id":"item_9"}`)); err != nil {
		t.Fatalf("done: %v", err)
	}
	if err := b.HandleUpstream(ctx, core.Frame(`{"type":"response.created"}`)); err != nil {
		t.Fatalf("created: %v", err)
	}

	if len(p.got) != 2 {
		t.Fatalf("player got %d messages", len(p.got))
	}
	ad, ok := p.got[0].(*protocol.AudioData)
	if !ok || ad.TrackID != "item_9" || len(ad.AudioData) != 3 || ad.AudioData[2] != 300 {
		t.Fatalf("audio-data = %+v", p.got[0])
	}
	if te, ok := p.got[1].(*protocol.TrackEnd); !ok || te.TrackID != "item_9" {
		t.Fatalf("track-end = %+v", p.got[1])
	}
	if p.pruned != 1 {
		t.Fatalf("response.created did not prune")
	}
}

func TestBridgeIgnoresLateDeltas(t *testing.T) {
	p := &fakePlayer{err: audio.ErrTrackInterrupted}
	b := NewBridge(p, &fakeSender{}, 24000)
	delta := `{"type":"response.audio.delta","item_id":"x","delta":"AAA="}`
	if err := b.HandleUpstream(context.Background(), core.Frame(delta)); err != nil {
		t.Fatalf("late delta should be dropped quietly: %v", err)
	}
	if err := b.HandleUpstream(context.Background(), core.Frame(`{"type":"response.audio.delta","delta":"!!"}`)); err == nil {
		t.Fatalf("expected bad base64 error")
	}
}

func TestBridgeInterruptTruncates(t *testing.T) {
	p := &fakePlayer{ack: protocol.InterruptAck{TrackID: "item_3", Offset: 36000}}
	out := &fakeSender{}
	b := NewBridge(p, out, 24000)

	if err := b.HandleUpstream(context.Background(), core.Frame(`{"type":"input_audio_buffer.speech_started"}`)); err != nil {
		t.Fatalf("speech_started: %v", err)
	}
	if len(out.sent) != 2 {
		t.Fatalf("sent %d events: %v", len(out.sent), out.sent)
	}
	if out.sent[0]["type"] != EventCancel {
		t.Fatalf("first event %v", out.sent[0])
	}
	tr := out.sent[1]
	if tr["type"] != EventTruncate || tr["item_id"] != "item_3" || tr["content_index"] != float64(0) || tr["audio_end_ms"] != float64(1500) {
		t.Fatalf("truncate event %v", tr)
	}
}

func TestBridgeInterruptNothingPlaying(t *testing.T) {
	out := &fakeSender{}
	b := NewBridge(&fakePlayer{}, out, 24000)
	res, err := b.Interrupt(context.Background())
	if err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	if res.Found || len(out.sent) != 0 {
		t.Fatalf("res=%+v sent=%v", res, out.sent)
	}
}

func TestBridgeSendAudioAndConfigure(t *testing.T) {
	out := &fakeSender{}
	b := NewBridge(&fakePlayer{}, out, 24000)
	if err := b.SendAudio(domain.AudioFrame{Samples: []int16{1, 258}}); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if err := b.Configure(); err != nil {
		t.Fatalf("configure: %v", err)
	}
	ev := out.sent[0]
	if ev["type"] != EventAppend || ev["audio"] != base64.StdEncoding.EncodeToString([]byte{1, 0, 2, 1}) {
		t.Fatalf("append event %v", ev)
	}
	session, _ := out.sent[1]["session"].(map[string]any)
	if out.sent[1]["type"] != EventSessionUpdate || session["input_audio_format"] != "pcm16" {
		t.Fatalf("session.update %v", out.sent[1])
	}
}

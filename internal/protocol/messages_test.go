package protocol

import (
	"errors"
	"testing"
)

func TestDecodeAudioData(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"audio-data","audioData":[1,-2,32767],"trackId":"item_1"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ad, ok := msg.(*AudioData)
	if !ok {
		t.Fatalf("got %T", msg)
	}
	if ad.TrackID != "item_1" || len(ad.AudioData) != 3 || ad.AudioData[1] != -2 {
		t.Fatalf("unexpected message %+v", ad)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("garbage: %v", err)
	}
	if _, err := Decode([]byte(`{"requestId":"x"}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("missing type: %v", err)
	}
	if _, err := Decode([]byte(`{"type":"session.update"}`)); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("unknown type: %v", err)
	}
	if _, err := Decode([]byte(`{"type":"audio-data","audioData":[70000]}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("out of range sample: %v", err)
	}
}

func TestInterruptAckEncoding(t *testing.T) {
	b, err := Encode(NewInterruptAck("r1", "t1", 4800))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"type":"interrupt-ack","requestId":"r1","trackId":"t1","offset":4800}`
	if string(b) != want {
		t.Fatalf("encoded %s, want %s", b, want)
	}
	if typ, err := PeekType(b); err != nil || typ != TypeInterruptAck {
		t.Fatalf("PeekType = %q, %v", typ, err)
	}
}

func TestEncodeReturnsError(t *testing.T) {
	if b, err := Encode(make(chan int)); err == nil || b != nil {
		t.Fatalf("Encode(chan) = %s, %v; want error", b, err)
	}
}

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/voicerelay/internal/metrics"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(metrics.New())
	a := NewSession("a", newFakeConn(), newFakeDialer(), nil)
	b := NewSession("b", newFakeConn(), newFakeDialer(), nil)

	unregA := r.Register(a)
	unregB := r.Register(b)
	if r.Count() != 2 {
		t.Fatalf("count = %d", r.Count())
	}
	if got, ok := r.Get("a"); !ok || got != a {
		t.Fatalf("Get(a) = %v, %v", got, ok)
	}

	unregA()
	unregA()
	if r.Count() != 1 {
		t.Fatalf("count after unregister = %d", r.Count())
	}

	if n := r.CloseAll(); n != 1 {
		t.Fatalf("CloseAll = %d", n)
	}
	select {
	case <-b.Done():
	default:
		t.Fatalf("session b still open")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if r.Wait(ctx) {
		t.Fatalf("Wait returned before b unregistered")
	}
	unregB()
	if !r.Wait(context.Background()) {
		t.Fatalf("Wait failed after all unregistered")
	}
}

func TestRegistryReplacesDuplicateID(t *testing.T) {
	r := NewRegistry(nil)
	old := NewSession("same", newFakeConn(), newFakeDialer(), nil)
	fresh := NewSession("same", newFakeConn(), newFakeDialer(), nil)
	r.Register(old)
	unreg := r.Register(fresh)

	select {
	case <-old.Done():
	default:
		t.Fatalf("replaced session not closed")
	}
	if got, _ := r.Get("same"); got != fresh || r.Count() != 1 {
		t.Fatalf("registry kept the old session")
	}
	unreg()
	if !r.Wait(context.Background()) {
		t.Fatalf("wait failed")
	}
}

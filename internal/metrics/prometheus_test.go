package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestMetricsIndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.SessionsOpened.Inc()
	a.MessagesRelayed.WithLabelValues("upstream").Add(3)

	out := scrape(t, a)
	if !strings.Contains(out, "voicerelay_sessions_opened_total 1") {
		t.Fatalf("a missing sessions counter:\n%s", out)
	}
	if !strings.Contains(out, `voicerelay_messages_relayed_total{direction="upstream"} 3`) {
		t.Fatalf("a missing relayed counter:\n%s", out)
	}
	if out := scrape(t, b); !strings.Contains(out, "voicerelay_sessions_opened_total 0") {
		t.Fatalf("b shares state with a:\n%s", out)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.ActiveSessions.Set(2)
	if out := scrape(t, m); !strings.Contains(out, "voicerelay_active_sessions 2") {
		t.Fatalf("metrics output missing gauge:\n%s", out)
	}
}

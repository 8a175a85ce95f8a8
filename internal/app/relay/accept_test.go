package relay

import (
	"net/http/httptest"
	"testing"
)

func TestAccept(t *testing.T) {
	for path, want := range map[string]bool{
		"/":          true,
		"/?x=1":      true,
		"/foo":       false,
		"/api/ws":    false,
		"/index.htm": false,
	} {
		r := httptest.NewRequest("GET", path, nil)
		if got := Accept(r); got != want {
			t.Fatalf("Accept(%q) = %v, want %v", path, got, want)
		}
	}
}

package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/gorilla/websocket"
)

// Dialer opens upstream realtime connections.
type Dialer struct {
	URL       string
	APIKey    string
	Timeout   time.Duration
	ReadLimit int64
	Header    http.Header
}

func (d *Dialer) Dial(ctx context.Context) (core.Upstream, error) {
	header := http.Header{}
	for k, vs := range d.Header {
		header[k] = append([]string(nil), vs...)
	}
	if d.APIKey != "" {
		header.Set("Authorization", "Bearer "+d.APIKey)
	}
	if header.Get("OpenAI-Beta") == "" {
		header.Set("OpenAI-Beta", "realtime=v1")
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.Timeout,
	}
	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	return NewConn(conn, d.ReadLimit), nil
}

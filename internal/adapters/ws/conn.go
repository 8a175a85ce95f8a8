// Package ws adapts gorilla/websocket connections to the relay's transport
// interfaces.
package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var ErrClosed = errors.New("ws: connection closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conn is a text-message websocket with a single serialized writer.
type Conn struct {
	ws *websocket.Conn

	wmu       sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func NewConn(ws *websocket.Conn, readLimit int64) *Conn {
	if readLimit > 0 {
		ws.SetReadLimit(readLimit)
	}
	return &Conn{ws: ws}
}

// Upgrade accepts a websocket handshake on w. header is added to the
// handshake response and may be nil.
func Upgrade(w http.ResponseWriter, r *http.Request, readLimit int64, header http.Header) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, readLimit), nil
}

func (c *Conn) ReadFrame() (core.Frame, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *Conn) WriteFrame(f core.Frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, f)
}

// KeepAlive arms the read deadline and pings every period in the
// background; a peer silent for two periods fails the next read. It must be
// called before the first ReadFrame.
func (c *Conn) KeepAlive(period time.Duration) {
	if period <= 0 {
		return
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * period))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * period))
	})
	go c.ping(period)
}

func (c *Conn) ping(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for range ticker.C {
		c.wmu.Lock()
		if c.closed {
			c.wmu.Unlock()
			return
		}
		err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		c.wmu.Unlock()
		if err != nil {
			return
		}
	}
}

// Close sends a normal close frame and releases the socket. Idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		c.closed = true
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wmu.Unlock()
		err = c.ws.Close()
	})
	return err
}

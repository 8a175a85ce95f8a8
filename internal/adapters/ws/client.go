package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/voicerelay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// closeGrace bounds how long a closing client waits for the relay to
// answer its close frame.
const closeGrace = time.Second

var ErrBackpressure = errors.New("backpressure")

// ClientConn is the voice client's connection to the relay. Sends are
// queued and never block the caller. Close is graceful: frames already
// queued are written before the close handshake.
type ClientConn struct {
	conn *websocket.Conn
	send chan core.Frame

	written  chan struct{} // closed when writePump exits
	readDone chan struct{} // closed when readPump exits

	mu     sync.RWMutex
	closed bool
}

// DialClient connects to the relay and starts the writer.
func DialClient(ctx context.Context, url string, backlog int) (*ClientConn, error) {
	if backlog <= 0 {
		backlog = 64
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	c := &ClientConn{
		conn:     conn,
		send:     make(chan core.Frame, backlog),
		written:  make(chan struct{}),
		readDone: make(chan struct{}),
	}
	go c.writePump()
	return c, nil
}

func (c *ClientConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops accepting sends. The writer flushes the queue, sends a close
// frame and releases the socket.
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run delivers every received frame to handle until the connection fails
// or ctx ends, then waits for queued sends to flush.
func (c *ClientConn) Run(ctx context.Context, handle func(core.Frame)) error {
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()
	err := c.readPump(handle)
	<-c.written
	return err
}

func (c *ClientConn) writePump() {
	defer close(c.written)
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Error().Err(err).Str("module", "ws.client").Msg("writePump set deadline")
			c.Close()
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "ws.client").Msg("writePump write error")
			c.Close()
			return
		}
	}
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	if err != nil {
		return
	}
	timer := time.NewTimer(closeGrace)
	defer timer.Stop()
	select {
	case <-c.readDone:
	case <-timer.C:
	}
}

func (c *ClientConn) readPump(handle func(core.Frame)) error {
	defer close(c.readDone)
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.RLock()
			closed := c.closed
			c.mu.RUnlock()
			if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read relay: %w", err)
		}
		handle(data)
	}
}

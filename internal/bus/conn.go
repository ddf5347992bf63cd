package bus

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
)

// ErrReceiveTimeout is returned by Conn.Receive when no frame arrives
// within the requested timeout.
var ErrReceiveTimeout = errors.New("bus: receive timeout")

// Conn is a single duplex frame connection, wrapping a websocket with
// JSON framing of protocol.TransportMessage (spec.md §5: the wire codec
// is JSON; CBOR is reserved for the ambient protocol-log side channel).
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
}

// NewConn wraps an established websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Send writes one frame. Safe for concurrent use.
func (c *Conn) Send(msg *protocol.TransportMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

// Receive reads the next frame, waiting up to timeout. A zero timeout
// blocks indefinitely.
func (c *Conn) Receive(timeout time.Duration) (*protocol.TransportMessage, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	var msg protocol.TransportMessage
	if err := c.ws.ReadJSON(&msg); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, err
		}
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return nil, ErrReceiveTimeout
		}
		return nil, err
	}
	return &msg, nil
}

// RemoteAddr returns the underlying connection's remote address string.
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Close closes the underlying websocket.
func (c *Conn) Close() error { return c.ws.Close() }

package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nanoclaw/nanoclaw/internal/log"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
)

// ClientConfig configures a device-side bus Client.
type ClientConfig struct {
	URL      string
	DeviceID string

	// OnMessage is called for every accepted inbound frame.
	OnMessage func(msg *protocol.TransportMessage)

	Logger log.Logger
}

// Client maintains a single reconnecting connection to the host,
// retrying with exponential backoff whenever the connection drops
// (spec.md §4.5, I-5).
type Client struct {
	config  ClientConfig
	manager *Manager

	mu   sync.RWMutex
	conn *Conn

	done chan struct{}
}

// NewClient creates a Client for config but does not connect yet.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	c := &Client{config: config, done: make(chan struct{})}
	c.manager = NewManager(c.dial)
	return c
}

// Start makes the initial connection attempt and, on failure, lets the
// reconnect loop keep retrying in the background.
func (c *Client) Start(ctx context.Context) error {
	c.manager.StartReconnectLoop()
	err := c.manager.Connect(ctx)
	if err != nil {
		c.manager.mu.Lock()
		c.manager.state = StateReconnecting
		c.manager.mu.Unlock()
		c.manager.triggerReconnect()
	}
	return err
}

// Stop closes the connection and halts reconnect attempts.
func (c *Client) Stop() error {
	close(c.done)
	c.manager.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports the manager's current connection state.
func (c *Client) IsConnected() bool { return c.manager.IsConnected() }

// Send delivers msg over the current connection. Returns an error if not
// currently connected; the caller is responsible for any queuing
// (spec.md leaves outbound buffering to the device event loop, not the
// bus).
func (c *Client) Send(msg *protocol.TransportMessage) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("bus: not connected")
	}
	return conn.Send(msg)
}

func (c *Client) dial(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("bus: dial %s: %w", c.config.URL, err)
	}
	conn := NewConn(ws)

	hello := &protocol.TransportMessage{
		Envelope: protocol.Envelope{V: protocol.ProtocolVersion, DeviceID: c.config.DeviceID, Source: c.config.DeviceID, MessageID: "hello-" + c.config.DeviceID},
		Kind:     protocol.KindHello,
	}
	if err := conn.Send(hello); err != nil {
		_ = conn.Close()
		return fmt.Errorf("bus: send hello: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.config.Logger.Log(log.Event{
		Timestamp: time.Now(), DeviceID: c.config.DeviceID, Direction: log.DirectionOut,
		Category: log.CategoryStateChange, NewState: "connected",
	})

	go c.readLoop(conn)
	return nil
}

func (c *Client) readLoop(conn *Conn) {
	for {
		msg, err := conn.Receive(0)
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			select {
			case <-c.done:
				return
			default:
				c.manager.NotifyConnectionLost()
				return
			}
		}
		if c.config.OnMessage != nil {
			c.config.OnMessage(msg)
		}
	}
}

package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nanoclaw/nanoclaw/internal/log"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
)

// ServerConfig configures a host-side bus Server.
type ServerConfig struct {
	Address string

	// OnConnect is called once a device's websocket has upgraded and its
	// identity is known (taken from the first hello frame).
	OnConnect func(deviceID string, conn *Conn)

	// OnDisconnect is called when a device connection closes.
	OnDisconnect func(deviceID string)

	// OnMessage is called for every frame received from deviceID.
	OnMessage func(deviceID string, msg *protocol.TransportMessage)

	Logger    log.Logger
	SlogLogger *slog.Logger
}

// Server accepts device websocket connections and dispatches inbound
// frames, and lets the host address a specific device by ID for
// outbound delivery (spec.md §4.5, component C5).
type Server struct {
	config   ServerConfig
	upgrader websocket.Upgrader
	http     *http.Server

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewServer creates a Server bound to config.Address, not yet listening.
func NewServer(config ServerConfig) *Server {
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	if config.SlogLogger == nil {
		config.SlogLogger = slog.Default()
	}
	s := &Server{
		config:   config,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		conns:    make(map[string]*Conn),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/bus", s.handleUpgrade)
	s.http = &http.Server{Addr: config.Address, Handler: mux}
	return s
}

// Start listens and serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// ConnectionCount returns the number of devices currently connected.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// SendTo delivers msg to deviceID's connection, if connected.
func (s *Server) SendTo(deviceID string, msg *protocol.TransportMessage) error {
	s.mu.RLock()
	conn, ok := s.conns[deviceID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("bus: device %s not connected", deviceID)
	}
	return conn.Send(msg)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.config.SlogLogger.Error("bus upgrade failed", "error", err)
		return
	}
	conn := NewConn(ws)

	first, err := conn.Receive(10 * time.Second)
	if err != nil || first.Kind != protocol.KindHello {
		s.config.SlogLogger.Warn("bus rejected connection: no hello frame", "error", err)
		_ = conn.Close()
		return
	}
	deviceID := first.DeviceID

	s.mu.Lock()
	s.conns[deviceID] = conn
	s.mu.Unlock()

	s.config.Logger.Log(log.Event{
		Timestamp: time.Now(), DeviceID: deviceID, Direction: log.DirectionIn,
		Category: log.CategoryStateChange, NewState: "connected", RemoteAddr: conn.RemoteAddr(),
	})
	if s.config.OnConnect != nil {
		s.config.OnConnect(deviceID, conn)
	}

	s.serveConn(deviceID, conn)
}

func (s *Server) serveConn(deviceID string, conn *Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, deviceID)
		s.mu.Unlock()
		_ = conn.Close()
		s.config.Logger.Log(log.Event{
			Timestamp: time.Now(), DeviceID: deviceID, Direction: log.DirectionIn,
			Category: log.CategoryStateChange, NewState: "disconnected",
		})
		if s.config.OnDisconnect != nil {
			s.config.OnDisconnect(deviceID)
		}
	}()

	for {
		msg, err := conn.Receive(0)
		if err != nil {
			return
		}
		if s.config.OnMessage != nil {
			s.config.OnMessage(deviceID, msg)
		}
	}
}

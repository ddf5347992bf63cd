package hostloop

import (
	"sync"

	"github.com/nanoclaw/nanoclaw/internal/protocol"
)

// inboundQueueDepth is the host Transport's bounded inbound queue depth
// (spec.md §4.5): 128, drop-oldest on overflow.
const inboundQueueDepth = 128

// TransportStats mirrors spec.md §4.5's stats() contract.
type TransportStats struct {
	InboundFrames   uint64
	OutboundFrames  uint64
	DroppedInbound  uint64
	DroppedOutbound uint64
}

// Sender is the narrow capability the runtime needs to emit a frame to a
// specific device; satisfied by *bus.Server.
type Sender interface {
	SendTo(deviceID string, msg *protocol.TransportMessage) error
	ConnectionCount() int
}

// Transport adapts a Sender into the abstract bounded-queue bus contract
// of spec.md §4.5: is_connected/poll_frames/send_frame/stats. It has no
// reconnect operation.
// Inbound frames accumulate from an asynchronous producer (the bus
// server's per-connection read loop) into a bounded, mutex-guarded queue;
// PollFrames drains it once per tick, matching the §5 concurrency model.
type Transport struct {
	sender Sender

	mu      sync.Mutex
	inbound []inboundFrame
	stats   TransportStats
}

type inboundFrame struct {
	deviceID string
	msg      *protocol.TransportMessage
}

// NewTransport wraps sender as a Transport.
func NewTransport(sender Sender) *Transport {
	return &Transport{sender: sender}
}

// PushInbound is the asynchronous producer side: call this from the bus
// server's OnMessage callback. Drops the oldest queued frame on overflow.
func (t *Transport) PushInbound(deviceID string, msg *protocol.TransportMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbound) >= inboundQueueDepth {
		t.inbound = t.inbound[1:]
		t.stats.DroppedInbound++
	}
	t.inbound = append(t.inbound, inboundFrame{deviceID: deviceID, msg: msg})
	t.stats.InboundFrames++
}

// PollFrames drains all currently queued inbound frames, FIFO by arrival.
func (t *Transport) PollFrames() []inboundFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.inbound) == 0 {
		return nil
	}
	drained := t.inbound
	t.inbound = nil
	return drained
}

// SendFrame delivers msg to deviceID.
func (t *Transport) SendFrame(deviceID string, msg *protocol.TransportMessage) error {
	err := t.sender.SendTo(deviceID, msg)
	t.mu.Lock()
	if err == nil {
		t.stats.OutboundFrames++
	} else {
		t.stats.DroppedOutbound++
	}
	t.mu.Unlock()
	return err
}

// IsConnected reports whether at least one device is currently connected.
func (t *Transport) IsConnected() bool { return t.sender.ConnectionCount() > 0 }

// Stats returns a snapshot of the transport's frame counters.
func (t *Transport) Stats() TransportStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

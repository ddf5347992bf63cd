// Package touch implements the touch pipeline (spec.md §4.2, component
// C2): a bounded FIFO over raw pointer events with stale-purge, coordinate
// validation, and frame production for the device event loop.
package touch

import "github.com/nanoclaw/nanoclaw/internal/protocol"

// Capacity is the bounded FIFO depth; on overflow the oldest event is
// dropped and DroppedCount increments.
const Capacity = 32

// StaleMS is the default staleness window for PurgeStale.
const StaleMS = 2000

// Point is a validated on-display coordinate.
type Point struct {
	X uint16
	Y uint16
}

// Frame is a validated touch event ready for the device state machine.
type Frame struct {
	Point Point
	Phase protocol.TouchPhase
}

// Driver is the subset of the hardware touch driver the pipeline drains
// from. It mirrors the TouchDriver capability described in spec.md §6.
type Driver interface {
	IsInterruptPending() bool
	ReadEvent() (protocol.TouchEventPayload, bool)
	ClearInterrupt()
}

// Bounds describes the valid on-display coordinate range.
type Bounds struct {
	Width  uint16
	Height uint16
}

// Contains reports whether (x, y) falls within the display bounds.
func (b Bounds) Contains(x, y uint16) bool {
	return x < b.Width && y < b.Height
}

// Pipeline is the bounded FIFO over raw touch events. It is owned
// exclusively by the device event loop; it is not safe for concurrent
// use.
type Pipeline struct {
	bounds  Bounds
	queue   []protocol.TouchEventPayload
	dropped uint64
}

// New creates a Pipeline that validates coordinates against bounds.
func New(bounds Bounds) *Pipeline {
	return &Pipeline{bounds: bounds, queue: make([]protocol.TouchEventPayload, 0, Capacity)}
}

// QueueDepth returns the number of events currently queued.
func (p *Pipeline) QueueDepth() int { return len(p.queue) }

// DroppedCount returns the monotonic count of events dropped on overflow.
func (p *Pipeline) DroppedCount() uint64 { return p.dropped }

// PushEvent appends a raw event, dropping the oldest on overflow.
func (p *Pipeline) PushEvent(ev protocol.TouchEventPayload) {
	if len(p.queue) >= Capacity {
		p.queue = p.queue[1:]
		p.dropped++
	}
	p.queue = append(p.queue, ev)
}

// popEvent removes and returns the oldest queued event.
func (p *Pipeline) popEvent() (protocol.TouchEventPayload, bool) {
	if len(p.queue) == 0 {
		return protocol.TouchEventPayload{}, false
	}
	ev := p.queue[0]
	p.queue = p.queue[1:]
	return ev, true
}

// DrainFromDriver pulls every pending event from driver into the
// pipeline, then clears the driver's interrupt. It does nothing if the
// driver has no interrupt pending and the pipeline is already empty.
// Returns the number of events drained.
func (p *Pipeline) DrainFromDriver(driver Driver) int {
	if !driver.IsInterruptPending() && len(p.queue) == 0 {
		return 0
	}

	drained := 0
	for {
		ev, ok := driver.ReadEvent()
		if !ok {
			break
		}
		p.PushEvent(ev)
		drained++
	}
	driver.ClearInterrupt()
	return drained
}

// NextFrame pops events until one has a valid on-display coordinate,
// discarding invalid ones, and returns it. Returns false if the queue is
// exhausted without finding a valid frame.
func (p *Pipeline) NextFrame() (Frame, bool) {
	for {
		ev, ok := p.popEvent()
		if !ok {
			return Frame{}, false
		}
		if p.bounds.Contains(ev.X, ev.Y) {
			return Frame{Point: Point{X: ev.X, Y: ev.Y}, Phase: ev.Phase}, true
		}
	}
}

// LastSeen holds the optional "last event observed at" timestamp that
// PurgeStale checks and clears. It is owned by the device event loop,
// which is also responsible for setting Value/Set on a fresh event —
// PurgeStale itself never does (spec.md §9).
type LastSeen struct {
	Set   bool
	Value uint64
}

// PurgeStale clears the queue and resets lastSeen if too much time has
// elapsed since the last observed event.
func (p *Pipeline) PurgeStale(nowMS uint64, staleMS uint64, lastSeen *LastSeen) {
	if lastSeen == nil || !lastSeen.Set {
		return
	}
	if nowMS-lastSeen.Value > staleMS {
		p.queue = p.queue[:0]
		lastSeen.Set = false
		lastSeen.Value = 0
	}
}

package drivers

import (
	"sync"

	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/touch"
)

// TouchDriver is the capability set the touch pipeline drains from
// (spec.md §6). It is a superset of touch.Driver: the pipeline only
// needs the read side, but the physical driver also exposes
// orientation transforms and lifecycle control.
type TouchDriver interface {
	touch.Driver

	Init() error
	Deinit() error
	SetTransform(swapXY, invertX, invertY bool)
}

// SimulatedTouch is a TouchDriver backed by an in-memory event queue,
// for injecting synthetic touches (e.g. from a -simulate flag or an
// interactive console) instead of reading real hardware.
type SimulatedTouch struct {
	mu      sync.Mutex
	events  []protocol.TouchEventPayload
	pending bool

	swapXY, invertX, invertY bool
}

// NewSimulatedTouch creates an empty SimulatedTouch driver.
func NewSimulatedTouch() *SimulatedTouch {
	return &SimulatedTouch{}
}

func (t *SimulatedTouch) Init() error   { return nil }
func (t *SimulatedTouch) Deinit() error { return nil }

func (t *SimulatedTouch) SetTransform(swapXY, invertX, invertY bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.swapXY, t.invertX, t.invertY = swapXY, invertX, invertY
}

// Inject queues a synthetic touch event as if the interrupt line had
// fired.
func (t *SimulatedTouch) Inject(x, y uint16, phase protocol.TouchPhase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.swapXY {
		x, y = y, x
	}
	t.events = append(t.events, protocol.TouchEventPayload{X: x, Y: y, Phase: phase})
	t.pending = true
}

func (t *SimulatedTouch) IsInterruptPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *SimulatedTouch) ReadEvent() (protocol.TouchEventPayload, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return protocol.TouchEventPayload{}, false
	}
	ev := t.events[0]
	t.events = t.events[1:]
	if len(t.events) == 0 {
		t.pending = false
	}
	return ev, true
}

func (t *SimulatedTouch) ClearInterrupt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = false
}

var _ TouchDriver = (*SimulatedTouch)(nil)

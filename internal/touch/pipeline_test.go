package touch_test

import (
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/touch"
	"github.com/stretchr/testify/require"
)

func bounds() touch.Bounds { return touch.Bounds{Width: 320, Height: 240} }

func TestPipelinePushAndOverflowDrops(t *testing.T) {
	p := touch.New(bounds())
	for i := 0; i < touch.Capacity+5; i++ {
		p.PushEvent(protocol.TouchEventPayload{X: 10, Y: 10, Phase: protocol.TouchDown})
	}
	require.Equal(t, touch.Capacity, p.QueueDepth())
	require.Equal(t, uint64(5), p.DroppedCount())
}

func TestNextFrameDiscardsInvalidCoordinates(t *testing.T) {
	p := touch.New(bounds())
	p.PushEvent(protocol.TouchEventPayload{X: 9999, Y: 9999, Phase: protocol.TouchDown})
	p.PushEvent(protocol.TouchEventPayload{X: 100, Y: 100, Phase: protocol.TouchMove})

	frame, ok := p.NextFrame()
	require.True(t, ok)
	require.Equal(t, touch.Point{X: 100, Y: 100}, frame.Point)

	_, ok = p.NextFrame()
	require.False(t, ok)
}

func TestPurgeStaleClearsQueueWhenStale(t *testing.T) {
	p := touch.New(bounds())
	p.PushEvent(protocol.TouchEventPayload{X: 1, Y: 1})
	last := &touch.LastSeen{Set: true, Value: 0}

	p.PurgeStale(1000, touch.StaleMS, last)
	require.Equal(t, 1, p.QueueDepth(), "not yet stale")

	p.PurgeStale(3001, touch.StaleMS, last)
	require.Equal(t, 0, p.QueueDepth())
	require.False(t, last.Set)
}

func TestPurgeStaleNoopWhenLastSeenUnset(t *testing.T) {
	p := touch.New(bounds())
	p.PushEvent(protocol.TouchEventPayload{X: 1, Y: 1})
	last := &touch.LastSeen{}
	p.PurgeStale(100_000, touch.StaleMS, last)
	require.Equal(t, 1, p.QueueDepth())
}

type fakeDriver struct {
	pending bool
	events  []protocol.TouchEventPayload
	cleared bool
}

func (f *fakeDriver) IsInterruptPending() bool { return f.pending }
func (f *fakeDriver) ReadEvent() (protocol.TouchEventPayload, bool) {
	if len(f.events) == 0 {
		return protocol.TouchEventPayload{}, false
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, true
}
func (f *fakeDriver) ClearInterrupt() { f.cleared = true }

func TestDrainFromDriverPullsUntilEmptyThenClears(t *testing.T) {
	p := touch.New(bounds())
	driver := &fakeDriver{
		pending: true,
		events: []protocol.TouchEventPayload{
			{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3},
		},
	}
	n := p.DrainFromDriver(driver)
	require.Equal(t, 3, n)
	require.True(t, driver.cleared)
	require.Equal(t, 3, p.QueueDepth())
}

func TestDrainFromDriverNoopWhenIdle(t *testing.T) {
	p := touch.New(bounds())
	driver := &fakeDriver{pending: false}
	n := p.DrainFromDriver(driver)
	require.Equal(t, 0, n)
	require.False(t, driver.cleared)
}

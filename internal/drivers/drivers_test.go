package drivers_test

import (
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/drivers"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestSimulatedDisplayFlushRegionValidatesPayload(t *testing.T) {
	d := drivers.NewSimulatedDisplay(100, 100)
	require.NoError(t, d.Init())

	require.NoError(t, d.FlushRegion(drivers.Rect{X: 0, Y: 0, W: 10, H: 10}, make([]byte, 100)))
	require.Equal(t, 1, d.FlushCount())

	require.ErrorIs(t, d.FlushRegion(drivers.Rect{X: 0, Y: 0, W: 0, H: 10}, nil), drivers.ErrInvalidPayload)
	require.ErrorIs(t, d.FlushRegion(drivers.Rect{X: 0, Y: 0, W: 10, H: 10}, make([]byte, 5)), drivers.ErrInvalidPayload)
	require.ErrorIs(t, d.FlushRegion(drivers.Rect{X: 95, Y: 0, W: 10, H: 10}, make([]byte, 100)), drivers.ErrInvalidPayload)
}

func TestSimulatedTouchInjectAndReadEvent(t *testing.T) {
	touchDriver := drivers.NewSimulatedTouch()
	require.False(t, touchDriver.IsInterruptPending())

	touchDriver.Inject(5, 6, protocol.TouchDown)
	require.True(t, touchDriver.IsInterruptPending())

	ev, ok := touchDriver.ReadEvent()
	require.True(t, ok)
	require.Equal(t, uint16(5), ev.X)
	require.Equal(t, protocol.TouchDown, ev.Phase)
	require.False(t, touchDriver.IsInterruptPending())

	_, ok = touchDriver.ReadEvent()
	require.False(t, ok)
}

func TestSimulatedTouchSwapXYTransform(t *testing.T) {
	touchDriver := drivers.NewSimulatedTouch()
	touchDriver.SetTransform(true, false, false)
	touchDriver.Inject(5, 6, protocol.TouchMove)
	ev, _ := touchDriver.ReadEvent()
	require.Equal(t, uint16(6), ev.X)
	require.Equal(t, uint16(5), ev.Y)
}

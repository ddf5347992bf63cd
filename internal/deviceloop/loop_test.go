package deviceloop_test

import (
	"fmt"
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/deviceloop"
	"github.com/nanoclaw/nanoclaw/internal/devicestate"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/touch"
	"github.com/stretchr/testify/require"
)

func newLoop() (*deviceloop.Loop, *devicestate.State, *touch.Pipeline) {
	state := devicestate.New("dev-1", nil, nil)
	pipeline := touch.New(touch.Bounds{Width: 320, Height: 240})
	loop := deviceloop.New(deviceloop.Config{}, state, pipeline)
	return loop, state, pipeline
}

func TestStepRendersOnFirstCallAndThenRespectsInterval(t *testing.T) {
	loop, _, _ := newLoop()

	out := loop.Step(1000, nil, nil, false)
	require.True(t, out.Rendered)

	out = loop.Step(1100, nil, nil, false)
	require.False(t, out.Rendered, "within render interval and same scene")

	out = loop.Step(1300, nil, nil, false)
	require.True(t, out.Rendered, "render interval elapsed")
}

func TestStepRendersImmediatelyOnSceneChange(t *testing.T) {
	loop, _, _ := newLoop()
	loop.Step(1000, nil, nil, false)

	helloAck := &protocol.TransportMessage{
		Envelope: protocol.Envelope{V: 1, Seq: 1, MessageID: "m-1"},
		Kind:     protocol.KindHelloAck,
	}
	out := loop.Step(1010, []*protocol.TransportMessage{helloAck}, nil, false)
	require.True(t, out.Rendered, "boot to connected is a scene change")
}

func TestStepMarksOfflineAfterHeartbeatTimeout(t *testing.T) {
	loop, _, _ := newLoop()
	heartbeat := &protocol.TransportMessage{
		Envelope: protocol.Envelope{V: 1, Seq: 1, MessageID: "h-1"},
		Kind:     protocol.KindHeartbeat,
	}
	loop.Step(1000, []*protocol.TransportMessage{heartbeat}, nil, false)

	out := loop.Step(20_000, nil, nil, false)
	require.True(t, out.OfflineEntered)
}

func TestStepReclaimsStaleInflightCommands(t *testing.T) {
	loop, state, _ := newLoop()
	state.EmitCommand(protocol.ActionStatusGet, nil, 1000)

	out := loop.Step(15_000, nil, nil, false)
	require.Len(t, out.ReclaimedCorrIDs, 1)
	require.NotEmpty(t, out.UIMessages)
}

func TestStepAppendsOfflineTimeoutUIMessage(t *testing.T) {
	loop, _, _ := newLoop()
	heartbeat := &protocol.TransportMessage{
		Envelope: protocol.Envelope{V: 1, Seq: 1, MessageID: "h-1"},
		Kind:     protocol.KindHeartbeat,
	}
	loop.Step(1000, []*protocol.TransportMessage{heartbeat}, nil, false)

	out := loop.Step(20_000, nil, nil, false)
	require.True(t, out.OfflineEntered)
	require.Contains(t, out.UIMessages, protocol.ReasonOfflineTimeout)
}

func TestStepAppendsSafetyLockdownUIMessage(t *testing.T) {
	loop, _, _ := newLoop()
	errMsg := func(seq uint64) *protocol.TransportMessage {
		return &protocol.TransportMessage{
			Envelope: protocol.Envelope{V: 1, Seq: seq, MessageID: fmt.Sprintf("e-%d", seq)},
			Kind:     protocol.KindError,
		}
	}
	var out deviceloop.Output
	for i := uint64(1); i <= 5; i++ {
		out = loop.Step(1000, []*protocol.TransportMessage{errMsg(i)}, nil, false)
	}
	require.True(t, out.InSafeMode)
	require.Contains(t, out.UIMessages, protocol.ReasonSafetyLockdown)
}

func TestStepEmitsSnapshotRequestOnReconnectAndSetsPendingReconciliation(t *testing.T) {
	loop, state, _ := newLoop()

	out := loop.Step(1000, nil, nil, false)
	require.Empty(t, out.Outbound)

	out = loop.Step(1010, nil, nil, true)
	require.Len(t, out.Outbound, 1)
	require.Equal(t, protocol.KindSnapshotRequest, out.Outbound[0].Kind)
	require.True(t, state.PendingReconciliation())

	// Staying connected doesn't re-request a snapshot every step.
	out = loop.Step(1020, nil, nil, true)
	require.Empty(t, out.Outbound)
}

type fakeDriver struct{ events []protocol.TouchEventPayload }

func (f *fakeDriver) IsInterruptPending() bool { return len(f.events) > 0 }
func (f *fakeDriver) ReadEvent() (protocol.TouchEventPayload, bool) {
	if len(f.events) == 0 {
		return protocol.TouchEventPayload{}, false
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, true
}
func (f *fakeDriver) ClearInterrupt() {}

func TestStepDrainsTouchDriverAndProducesNoActionOutsideSafeMode(t *testing.T) {
	loop, _, _ := newLoop()
	driver := &fakeDriver{events: []protocol.TouchEventPayload{
		{X: 10, Y: 10, Phase: protocol.TouchDown},
		{X: 200, Y: 10, Phase: protocol.TouchUp},
	}}
	out := loop.Step(1000, nil, driver, false)
	require.Empty(t, out.UIMessages, "swipe outside safe/error scene produces no UI message")
}

func TestStepRaisesDismissUIMessageOnSwipeInSafeMode(t *testing.T) {
	loop, state, _ := newLoop()
	require.NoError(t, state.MarkBootFailure())
	require.NoError(t, state.MarkBootFailure())
	require.NoError(t, state.MarkBootFailure())
	require.Equal(t, devicestate.ModeSafeMode, state.Mode().Mode)

	driver := &fakeDriver{events: []protocol.TouchEventPayload{
		{X: 10, Y: 10, Phase: protocol.TouchDown},
		{X: 200, Y: 10, Phase: protocol.TouchUp},
	}}
	out := loop.Step(1000, nil, driver, false)
	require.Contains(t, out.UIMessages, "dismiss_requested")
}

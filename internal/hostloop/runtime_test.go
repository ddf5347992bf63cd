package hostloop_test

import (
	"encoding/json"
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/hostloop"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/queue"
	"github.com/nanoclaw/nanoclaw/internal/sandbox"
	"github.com/nanoclaw/nanoclaw/internal/scheduler"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent        []*protocol.TransportMessage
	connections int
}

func (f *fakeSender) SendTo(deviceID string, msg *protocol.TransportMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) ConnectionCount() int { return f.connections }

type fakeBackend struct {
	result sandbox.CommandResult
	err    error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Run(spec sandbox.RunSpec, mp sandbox.MountPolicy, ep sandbox.EgressPolicy) (sandbox.CommandResult, error) {
	return f.result, f.err
}

func newRuntime(t *testing.T, cfg hostloop.Config) (*hostloop.Runtime, *fakeSender, *hostloop.Transport, scheduler.Store) {
	t.Helper()
	sender := &fakeSender{connections: 1}
	transport := hostloop.NewTransport(sender)
	q := queue.New(queue.DefaultConfig())
	store := scheduler.NewMemoryStore()
	dispatch := sandbox.New(&fakeBackend{result: sandbox.CommandResult{Stdout: "done"}}, sandbox.Config{})
	rt := hostloop.New(cfg, transport, hostloop.NoopBusLog{}, q, store, dispatch)
	return rt, sender, transport, store
}

func commandFrame(source, action string, corrID string) *protocol.TransportMessage {
	cmd := protocol.DeviceCommand{Action: protocol.DeviceAction(action)}
	raw, _ := json.Marshal(cmd)
	msg := &protocol.TransportMessage{
		Envelope: protocol.Envelope{Source: source, DeviceID: "device-1", SessionID: "session-1", MessageID: "m1"},
		Kind:     protocol.KindCommand,
		Payload:  raw,
	}
	if corrID != "" {
		msg.CorrID = &corrID
	}
	return msg
}

func TestRuntimeDispatchesAllowedCommandAndReturnsCorrelatedResult(t *testing.T) {
	rt, _, transport, _ := newRuntime(t, hostloop.Config{HostID: "host-1", AllowedSources: []string{"device-1"}})

	corrID := "corr-1"
	transport.PushInbound("device-1", commandFrame("device-1", "status_get", corrID))

	report := rt.Step(1000)
	require.Equal(t, uint64(1), report.ItemsDispatched)
	require.Equal(t, uint64(1), report.ItemsSucceeded)
	require.Len(t, report.Outbound, 1)
}

func TestRuntimeRejectsUnauthorizedSource(t *testing.T) {
	rt, _, transport, _ := newRuntime(t, hostloop.Config{HostID: "host-1", AllowedSources: []string{"trusted-device"}})

	transport.PushInbound("device-1", commandFrame("device-1", "status_get", "corr-1"))

	report := rt.Step(1000)
	require.Equal(t, uint64(1), report.CommandsRejected)
	require.Empty(t, report.Outbound)
}

func TestRuntimeDeniesDisallowedAction(t *testing.T) {
	rt, _, transport, _ := newRuntime(t, hostloop.Config{
		HostID:             "host-1",
		AllowedSources:     []string{"device-1"},
		AllowedHostActions: []protocol.DeviceAction{protocol.ActionStatusGet},
	})

	transport.PushInbound("device-1", commandFrame("device-1", "restart", "corr-1"))

	report := rt.Step(1000)
	require.Equal(t, uint64(1), report.CommandsDenied)
	require.Len(t, report.Outbound, 1)
}

func TestRuntimeEmitsHeartbeatAck(t *testing.T) {
	rt, _, transport, _ := newRuntime(t, hostloop.Config{HostID: "host-1"})

	msg := &protocol.TransportMessage{
		Envelope: protocol.Envelope{Source: "device-1", DeviceID: "device-1", MessageID: "hb-1"},
		Kind:     protocol.KindHeartbeat,
	}
	transport.PushInbound("device-1", msg)

	report := rt.Step(1000)
	require.Len(t, report.Outbound, 1)
}

func TestRuntimePollsAndDispatchesDueScheduledTask(t *testing.T) {
	rt, _, _, store := newRuntime(t, hostloop.Config{HostID: "host-1", SchedulerPollIntervalMS: 1})

	next := uint64(500)
	require.NoError(t, store.Put(scheduler.ScheduledTask{
		ID: "task-1", Group: "device-1", Prompt: "summarize",
		ScheduleType: scheduler.ScheduleOnce, NextRunMS: &next, Active: true,
	}))

	report := rt.Step(1000)
	require.Equal(t, uint64(1), report.TasksPolled)
	require.Equal(t, uint64(1), report.ItemsDispatched)
	require.Equal(t, uint64(1), report.ItemsSucceeded)

	task, ok, err := store.Get("task-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, task.Active)
	require.Equal(t, "done", task.LastResult)
}

func TestRuntimeHealthLogFiresOnInterval(t *testing.T) {
	rt, _, _, _ := newRuntime(t, hostloop.Config{HostID: "host-1", HealthLogIntervalMS: 1000})

	first := rt.Step(0)
	require.True(t, first.HealthLogged)

	second := rt.Step(500)
	require.False(t, second.HealthLogged)

	third := rt.Step(1000)
	require.True(t, third.HealthLogged)
}

// Package hostloop implements the host runtime loop (spec.md §4.9,
// component C9): the single step(now) that drains inbound frames,
// replays the bus log, polls the scheduler, drains the group execution
// queue into the sandbox dispatcher, and reports per-tick counters.
package hostloop

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/queue"
	"github.com/nanoclaw/nanoclaw/internal/sandbox"
	"github.com/nanoclaw/nanoclaw/internal/scheduler"
)

// Config tunes the runtime's rate limits and trust boundaries.
type Config struct {
	HostID                  string
	AllowedSources          []string
	AllowedHostActions      []protocol.DeviceAction
	HealthLogIntervalMS     uint64
	SchedulerPollIntervalMS uint64
}

// DefaultConfig matches the environment defaults spec.md names.
func DefaultConfig() Config {
	return Config{HealthLogIntervalMS: 5_000, SchedulerPollIntervalMS: 1_000}
}

// StepReport accounts everything a single step(now) did (spec.md §4.9
// step 7), preserved across the whole step rather than overwritten by
// any one sub-step (the same I-5 preservation discipline as the device
// loop).
type StepReport struct {
	HealthLogged       bool
	TransportConnected bool
	CommandsRejected   uint64
	CommandsDenied     uint64
	FramesReplayed     uint64
	TasksPolled        uint64
	ItemsDispatched    uint64
	ItemsSucceeded     uint64
	ItemsFailed        uint64
	Outbound           []outboundFrame
}

type outboundFrame struct {
	deviceID string
	msg      *protocol.TransportMessage
}

// Runtime owns the host's per-tick state: the inbound allowlist/command
// gate, the group execution queue, the scheduled task store, the sandbox
// dispatcher, and the bus replay watermark.
type Runtime struct {
	config Config

	transport *Transport
	busLog    BusLog
	q         *queue.Queue
	store     scheduler.Store
	dispatch  *sandbox.Dispatcher

	outboundSeq         uint64
	lastBusSeq          uint64
	nextHealthLogMS     uint64
	nextSchedulerPollMS uint64
	inflightTaskIDs     map[string]struct{}
}

// New creates a Runtime. transport, busLog, q, store, and dispatch must
// all be non-nil.
func New(config Config, transport *Transport, busLog BusLog, q *queue.Queue, store scheduler.Store, dispatch *sandbox.Dispatcher) *Runtime {
	if config.HealthLogIntervalMS == 0 {
		config.HealthLogIntervalMS = DefaultConfig().HealthLogIntervalMS
	}
	if config.SchedulerPollIntervalMS == 0 {
		config.SchedulerPollIntervalMS = DefaultConfig().SchedulerPollIntervalMS
	}
	return &Runtime{
		config:          config,
		transport:       transport,
		busLog:          busLog,
		q:               q,
		store:           store,
		dispatch:        dispatch,
		inflightTaskIDs: make(map[string]struct{}),
	}
}

// Step runs one full tick: health log, transport status check, inbound
// drain, bus replay, scheduler poll, queue drain. The transport step only
// records whether any device is connected; it attempts no reconnection.
// It is not re-entrant;
// callers must serialize calls to Step (spec.md §5).
func (r *Runtime) Step(nowMS uint64) StepReport {
	var report StepReport

	r.stepHealthLog(nowMS, &report)
	r.stepTransportRecovery(&report)
	r.stepInboundDrain(nowMS, &report)
	r.stepBusReplay(&report)
	r.stepSchedulerPoll(nowMS, &report)
	r.stepQueueDrain(nowMS, &report)

	return report
}

func (r *Runtime) stepHealthLog(nowMS uint64, report *StepReport) {
	if nowMS < r.nextHealthLogMS {
		return
	}
	report.HealthLogged = true
	report.TransportConnected = r.transport.IsConnected()
	slog.Info("host_status",
		"in_flight_tasks", len(r.inflightTaskIDs),
		"backend_failures", r.dispatch.BackendFailures(),
		"transport_connected", report.TransportConnected,
		"queue_depth", r.q.Depth(),
		"last_bus_seq", r.lastBusSeq,
	)
	r.nextHealthLogMS = nowMS + r.config.HealthLogIntervalMS
}

func (r *Runtime) stepTransportRecovery(report *StepReport) {
	report.TransportConnected = r.transport.IsConnected()
}

func (r *Runtime) stepInboundDrain(nowMS uint64, report *StepReport) {
	for _, frame := range r.transport.PollFrames() {
		r.handleInbound(frame.deviceID, frame.msg, nowMS, report)
	}
}

func (r *Runtime) handleInbound(deviceID string, msg *protocol.TransportMessage, nowMS uint64, report *StepReport) {
	if !r.sourceAllowed(msg.Source) {
		report.CommandsRejected++
		return
	}

	switch msg.Kind {
	case protocol.KindCommand, protocol.KindHostCommand:
		r.handleCommand(deviceID, msg, nowMS, report)
	case protocol.KindHeartbeat:
		r.emitHeartbeatAck(deviceID, msg, report)
	}
}

func (r *Runtime) sourceAllowed(source string) bool {
	if len(r.config.AllowedSources) == 0 {
		return true
	}
	for _, allowed := range r.config.AllowedSources {
		if allowed == "*" || allowed == source {
			return true
		}
	}
	return false
}

func (r *Runtime) handleCommand(deviceID string, msg *protocol.TransportMessage, nowMS uint64, report *StepReport) {
	cmd, ok := msg.AsDeviceCommand()
	if !ok {
		report.CommandsRejected++
		return
	}

	if len(r.config.AllowedHostActions) > 0 && !r.actionAllowed(cmd.Action) {
		report.CommandsDenied++
		corrID := corrIDOf(msg)
		r.emit(deviceID, protocol.KindError, corrID, protocol.ProtocolError{
			Code:        protocol.ReasonCommandDenied,
			Detail:      fmt.Sprintf("action %q is not permitted", cmd.Action),
			Recoverable: false,
		}, report)
		return
	}

	group := msg.SessionID
	if group == "" {
		group = msg.DeviceID
	}
	work := Work{
		Kind:           WorkCommand,
		Action:         cmd.Action,
		CorrID:         corrIDOf(msg),
		TargetDeviceID: deviceID,
		DeviceID:       msg.DeviceID,
		Args:           cmd.Args,
	}
	r.q.Enqueue(group, work.CorrID, encodeWork(work))
}

func (r *Runtime) actionAllowed(action protocol.DeviceAction) bool {
	for _, allowed := range r.config.AllowedHostActions {
		if allowed == action {
			return true
		}
	}
	return false
}

func (r *Runtime) emitHeartbeatAck(deviceID string, msg *protocol.TransportMessage, report *StepReport) {
	r.emit(deviceID, protocol.KindCommandResult, corrIDOf(msg), map[string]any{
		"ok":      true,
		"backend": r.dispatch.BackendName(),
	}, report)
}

func (r *Runtime) stepBusReplay(report *StepReport) {
	events, err := r.busLog.FetchSince(r.lastBusSeq)
	if err != nil {
		return
	}
	for _, e := range events {
		if e.Seq > r.lastBusSeq {
			r.lastBusSeq = e.Seq
		}
	}
	report.FramesReplayed = uint64(len(events))
}

func (r *Runtime) stepSchedulerPoll(nowMS uint64, report *StepReport) {
	if nowMS < r.nextSchedulerPollMS {
		return
	}
	r.nextSchedulerPollMS = nowMS + r.config.SchedulerPollIntervalMS

	due, err := r.store.DueTasks(nowMS)
	if err != nil {
		return
	}
	for _, task := range due {
		if !task.Active {
			continue
		}
		if _, inflight := r.inflightTaskIDs[task.ID]; inflight {
			continue
		}
		report.TasksPolled++
		r.inflightTaskIDs[task.ID] = struct{}{}
		r.q.Enqueue(task.Group, task.ID, encodeWork(Work{Kind: WorkScheduledTask, TaskID: task.ID}))
	}
}

func (r *Runtime) stepQueueDrain(nowMS uint64, report *StepReport) {
	for {
		item, ok := r.q.NextReady(nowMS)
		if !ok {
			return
		}
		report.ItemsDispatched++
		success := r.dispatchItem(item, nowMS, report)
		r.q.Complete(item, success, nowMS)
		if success {
			report.ItemsSucceeded++
		} else {
			report.ItemsFailed++
		}
	}
}

func (r *Runtime) dispatchItem(item *queue.Item, nowMS uint64, report *StepReport) bool {
	work, err := decodeWork(item.Payload)
	if err != nil {
		return false
	}

	switch work.Kind {
	case WorkCommand:
		return r.dispatchCommand(work, nowMS, report)
	case WorkScheduledTask:
		return r.dispatchScheduledTask(work, nowMS, report)
	default:
		return false
	}
}

func (r *Runtime) dispatchCommand(work Work, nowMS uint64, report *StepReport) bool {
	var body map[string]any
	switch work.Action {
	case protocol.ActionStatusGet:
		body = map[string]any{
			"in_flight_tasks":  len(r.inflightTaskIDs),
			"outbound_depth":   r.q.Depth(),
			"backend_failures": r.dispatch.BackendFailures(),
		}
	case protocol.ActionSyncNow:
		due, _ := r.store.DueTasks(nowMS)
		body = map[string]any{"due_count": len(due)}
	default:
		body = map[string]any{"status": "accepted", "action": work.Action, "args": work.Args}
	}
	r.emit(work.TargetDeviceID, protocol.KindCommandResult, work.CorrID, body, report)
	return true
}

func (r *Runtime) dispatchScheduledTask(work Work, nowMS uint64, report *StepReport) bool {
	defer delete(r.inflightTaskIDs, work.TaskID)

	task, ok, err := r.store.Get(work.TaskID)
	if err != nil || !ok {
		return false
	}

	started := nowMS
	result, runErr := r.dispatch.Run(task.ID, task.Prompt, sandbox.RunSpec{}, nowMS)
	durationMS := nowMS - started

	if runErr != nil {
		_ = r.store.LogRun(task.ID, nowMS, durationMS, "failed", "", runErr.Error())
		return false
	}

	nextRun, err := scheduler.ComputeNextRun(task.ScheduleType, task.ScheduleValue, nowMS)
	if err != nil {
		nextRun = nil
	}
	_ = r.store.UpdateTaskAfterRun(task.ID, nextRun, result.Stdout, nowMS)
	_ = r.store.LogRun(task.ID, nowMS, durationMS, "ok", result.Stdout, "")

	body := map[string]any{
		"task_id":     task.ID,
		"duration_ms": durationMS,
		"result":      result.Stdout,
	}
	if nextRun != nil {
		body["next_run"] = *nextRun
	}
	r.emit(task.Group, protocol.KindCommandResult, "", body, report)
	return true
}

func (r *Runtime) emit(deviceID string, kind protocol.Kind, corrID string, payload any, report *StepReport) {
	msg := &protocol.TransportMessage{
		Envelope: protocol.Envelope{
			V:         protocol.ProtocolVersion,
			Seq:       r.nextOutboundSeq(),
			Source:    r.config.HostID,
			DeviceID:  deviceID,
			MessageID: uuid.NewString(),
		},
		Kind: kind,
	}
	if corrID != "" {
		msg.CorrID = &corrID
	}
	if raw, err := json.Marshal(payload); err == nil {
		msg.Payload = raw
	}

	if err := r.transport.SendFrame(deviceID, msg); err != nil {
		return
	}
	report.Outbound = append(report.Outbound, outboundFrame{deviceID: deviceID, msg: msg})
}

func (r *Runtime) nextOutboundSeq() uint64 {
	r.outboundSeq++
	return r.outboundSeq
}

func corrIDOf(msg *protocol.TransportMessage) string {
	if msg.CorrID != nil {
		return *msg.CorrID
	}
	return msg.MessageID
}

// Package deviceloop implements the device event loop (spec.md §4.4,
// component C4): one step ties together inbound transport frames, the
// touch pipeline, the device state machine, and render-interval
// housekeeping.
package deviceloop

import (
	"fmt"

	"github.com/nanoclaw/nanoclaw/internal/devicestate"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/touch"
)

// Config tunes the event loop's timing. Zero-value fields fall back to
// DefaultConfig's values when passed to New.
type Config struct {
	RenderIntervalMS  uint64
	OfflineTimeoutMS  uint64
	InflightTimeoutMS uint64
}

// DefaultConfig mirrors event_loop.rs's EventLoopConfig defaults, with an
// added InflightTimeoutMS the original event loop doesn't have (spec.md
// §4.4 step 5 requires reclaiming stale in-flight commands, which the
// reference event loop never implements).
func DefaultConfig() Config {
	return Config{
		RenderIntervalMS:  250,
		OfflineTimeoutMS:  15_000,
		InflightTimeoutMS: 10_000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RenderIntervalMS == 0 {
		c.RenderIntervalMS = d.RenderIntervalMS
	}
	if c.OfflineTimeoutMS == 0 {
		c.OfflineTimeoutMS = d.OfflineTimeoutMS
	}
	if c.InflightTimeoutMS == 0 {
		c.InflightTimeoutMS = d.InflightTimeoutMS
	}
	return c
}

// Output is everything a step produced: frames to send, UI messages to
// render, and flags the caller (main loop / driver glue) acts on.
type Output struct {
	Outbound         []*protocol.TransportMessage
	UIMessages       []string
	Rendered         bool
	OfflineEntered   bool
	InSafeMode       bool
	ReclaimedCorrIDs []string
}

// Loop is the device event loop. It owns the touch pipeline's staleness
// tracking and swipe detector in addition to driving the state machine;
// the state machine and pipeline themselves are owned by the caller and
// passed in so tests can inspect them directly.
type Loop struct {
	config   Config
	state    *devicestate.State
	pipeline *touch.Pipeline
	detector *touch.Detector

	lastTouchSeen touch.LastSeen
	lastRenderMS  uint64
	sceneCache    devicestate.Scene
	hasRendered   bool
	wasConnected  bool
}

// New creates a Loop driving state and pipeline.
func New(config Config, state *devicestate.State, pipeline *touch.Pipeline) *Loop {
	return &Loop{
		config:   config.withDefaults(),
		state:    state,
		pipeline: pipeline,
		detector: touch.NewDetector(),
	}
}

// Step runs one iteration: applies inbound transport frames, runs
// transport housekeeping, drains and processes touch events, purges
// stale touch state, reclaims timed-out in-flight commands, checks for
// offline/safety transitions, and decides whether a render is due.
// connected reports whether the bus transport currently holds an open
// connection to the host.
func (l *Loop) Step(nowMS uint64, inbound []*protocol.TransportMessage, driver touch.Driver, connected bool) Output {
	var out Output

	if connected && !l.wasConnected {
		out.Outbound = append(out.Outbound, l.state.EmitSnapshotRequest(nowMS))
		l.state.SetPendingReconciliation(true)
	}
	l.wasConnected = connected

	for _, msg := range inbound {
		l.applyAction(l.state.ApplyTransportMessage(msg, nowMS), nowMS, &out)
	}

	if driver != nil {
		if drained := l.pipeline.DrainFromDriver(driver); drained > 0 {
			l.lastTouchSeen = touch.LastSeen{Set: true, Value: nowMS}
		}
	}
	l.pipeline.PurgeStale(nowMS, touch.StaleMS, &l.lastTouchSeen)

	for {
		frame, ok := l.pipeline.NextFrame()
		if !ok {
			break
		}
		l.applyAction(l.state.ApplyTouchFrame(frame, l.detector), nowMS, &out)
	}

	out.OfflineEntered = l.state.MarkOfflineIfStale(nowMS, l.config.OfflineTimeoutMS)
	if out.OfflineEntered {
		out.UIMessages = append(out.UIMessages, protocol.ReasonOfflineTimeout)
	}

	for _, corrID := range l.state.ReclaimStaleInflight(nowMS, l.config.InflightTimeoutMS) {
		out.ReclaimedCorrIDs = append(out.ReclaimedCorrIDs, corrID)
		out.UIMessages = append(out.UIMessages, fmt.Sprintf("command %s timed out", corrID))
	}

	if l.state.SafetyLockdownCheck() {
		out.InSafeMode = true
		out.UIMessages = append(out.UIMessages, protocol.ReasonSafetyLockdown)
	}
	out.InSafeMode = out.InSafeMode || l.state.Mode().Mode == devicestate.ModeSafeMode

	out.Rendered = l.shouldRender(nowMS)
	return out
}

func (l *Loop) shouldRender(nowMS uint64) bool {
	scene := l.state.Scene()
	due := !l.hasRendered || scene != l.sceneCache || nowMS-l.lastRenderMS >= l.config.RenderIntervalMS
	if !due {
		return false
	}
	l.sceneCache = scene
	l.lastRenderMS = nowMS
	l.hasRendered = true
	return true
}

func (l *Loop) applyAction(action devicestate.Action, nowMS uint64, out *Output) {
	switch action.Kind {
	case devicestate.ActionNone:
		return
	case devicestate.ActionEmitCommand:
		// Re-dispatch through EmitCommand so the outbound sequence and
		// in-flight ledger stay consistent with directly-issued commands.
		msg := l.state.EmitCommand(action.Command.Action, action.Command.Args, nowMS)
		out.Outbound = append(out.Outbound, msg)
		out.UIMessages = append(out.UIMessages, protocol.UIEmitCommand)
	case devicestate.ActionEmitAck:
		out.UIMessages = append(out.UIMessages, fmt.Sprintf("ack %s", action.CorrID))
	case devicestate.ActionRaiseUIState:
		out.UIMessages = append(out.UIMessages, action.UIMessage)
	}
}

package devicestate

import (
	"encoding/json"
	"fmt"

	"github.com/nanoclaw/nanoclaw/internal/fingerprint"
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/storage"
)

const (
	diagnosticsCap         = 16
	defaultSafetyFailLimit = 5
	defaultBootRetryLimit  = 3
)

// State is the device state machine (spec.md §4.3, component C3). It
// owns mode/scene transitions, the in-flight command ledger, the
// fingerprint gate for inbound frames, and the safety/boot-failure
// counters. Every method that depends on elapsed time takes nowMS
// explicitly; State never reads a clock itself.
type State struct {
	mode ModeState

	deviceID      string
	outboundSeq   uint64
	gate          *fingerprint.Gate
	inFlight      map[string]protocol.InFlightCommand
	diagnostics   []string
	lastStatus    *protocol.DeviceStatus
	offlineSince  *uint64
	lastHeartbeat *uint64

	hostAllowlist []string

	safetyFailCount int
	safetyFailLimit int

	otaInProgress    bool
	otaTargetVersion string
	otaErrorReason   string

	bootFailureCount uint32
	bootRetryLimit   uint32

	store                 storage.KV
	pendingReconciliation bool
}

// New creates a State for deviceID. If store is non-nil its persisted
// boot_failure_count is loaded; a count at or beyond bootRetryLimit
// forces an immediate SafeMode entry, mirroring runtime.rs's
// RuntimeState::with_storage.
func New(deviceID string, hostAllowlist []string, store storage.KV) *State {
	s := &State{
		mode:            ModeState{Mode: ModeBooting},
		deviceID:        deviceID,
		gate:            fingerprint.New(hostAllowlist),
		inFlight:        make(map[string]protocol.InFlightCommand),
		hostAllowlist:   hostAllowlist,
		safetyFailLimit: defaultSafetyFailLimit,
		bootRetryLimit:  defaultBootRetryLimit,
		store:           store,
	}
	if store != nil {
		if count, ok := store.GetU32(storage.KeyBootFailureCount); ok {
			s.bootFailureCount = count
			if count >= s.bootRetryLimit {
				s.mode = ModeState{Mode: ModeSafeMode, Reason: "boot_failure_limit_exceeded"}
			}
		}
	}
	return s
}

// Mode returns the current mode.
func (s *State) Mode() ModeState { return s.mode }

// Scene derives the UI scene implied by the current mode.
func (s *State) Scene() Scene { return SceneFor(s.mode.Mode) }

// DeviceID returns the identifier this state machine was created with.
func (s *State) DeviceID() string { return s.deviceID }

// LastStatus returns the most recently applied status snapshot, if any.
func (s *State) LastStatus() *protocol.DeviceStatus { return s.lastStatus }

// Diagnostics returns the diagnostics ring, oldest first.
func (s *State) Diagnostics() []string {
	out := make([]string, len(s.diagnostics))
	copy(out, s.diagnostics)
	return out
}

// InFlightCount reports the number of commands awaiting acknowledgement.
func (s *State) InFlightCount() int { return len(s.inFlight) }

func (s *State) pushDiagnostic(msg string) {
	s.diagnostics = append(s.diagnostics, msg)
	if len(s.diagnostics) > diagnosticsCap {
		s.diagnostics = s.diagnostics[len(s.diagnostics)-diagnosticsCap:]
	}
}

// ApplyTransportMessage runs an inbound frame through the fingerprint
// gate and, if accepted, updates mode/status/in-flight state per
// spec.md §4.3. It returns the Action the caller (deviceloop) must
// carry out, which may be ActionNone.
//
// I-1: rejected frames never mutate mode, lastStatus, or inFlight.
func (s *State) ApplyTransportMessage(msg *protocol.TransportMessage, nowMS uint64) Action {
	if rejection, ok := s.gate.Check(msg, nowMS); !ok {
		s.pushDiagnostic(fmt.Sprintf("rejected %s: %s", msg.MessageID, rejection))
		if rejection == fingerprint.RejectDeniedUnauthorizedSource {
			s.noteSafetyFailure()
		}
		return Action{Kind: ActionRaiseUIState, UIMessage: uiMessageForRejection(rejection)}
	}

	switch msg.Kind {
	case protocol.KindHelloAck:
		if err := s.MarkBootSuccess(); err != nil {
			s.pushDiagnostic(fmt.Sprintf("mark boot success: %v", err))
		}
		s.mode = ModeState{Mode: ModeConnected}
		s.offlineSince = nil
		s.safetyFailCount = 0
		return Action{Kind: ActionRaiseUIState, UIMessage: protocol.UIConnected}

	case protocol.KindStatusSnapshot, protocol.KindStatusDelta:
		if status, ok := msg.AsDeviceStatus(); ok {
			s.applyStatusSnapshot(*status, nowMS, msg.Kind == protocol.KindStatusSnapshot)
		}
		return noAction()

	case protocol.KindCommand, protocol.KindHostCommand:
		cmd, ok := msg.AsDeviceCommand()
		if !ok {
			return Action{Kind: ActionRaiseUIState, UIMessage: protocol.UICommandParseError}
		}
		return s.applyDeviceCommand(*cmd)

	case protocol.KindCommandAck:
		if msg.CorrID != nil {
			delete(s.inFlight, *msg.CorrID)
		}
		return noAction()

	case protocol.KindCommandResult:
		if msg.CorrID != nil {
			delete(s.inFlight, *msg.CorrID)
		}
		if s.otaInProgress {
			var body struct {
				Result string `json:"result"`
			}
			if msg.DecodePayload(&body) == nil {
				switch body.Result {
				case "ok", "success":
					s.MarkOTAComplete()
				case "error", "failed":
					s.MarkOTAFailed("ota_" + body.Result)
				}
			}
		}
		return Action{Kind: ActionEmitAck, CorrID: derefCorrID(msg.CorrID)}

	case protocol.KindError:
		s.noteSafetyFailure()
		return noAction()

	case protocol.KindHeartbeat:
		s.noteHeartbeat(nowMS)
		return noAction()

	default:
		return noAction()
	}
}

func derefCorrID(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// uiMessageForRejection maps a fingerprint gate rejection to the literal
// UI message scenario strings require (spec.md §8).
func uiMessageForRejection(r fingerprint.Rejection) string {
	switch r {
	case fingerprint.RejectDeniedUnauthorizedSource:
		return protocol.UICommandDeniedUnauthorizedSource
	case fingerprint.RejectExpiredTTL:
		return protocol.UIMessageExpiredTTL
	case fingerprint.RejectReplayOrDuplicate:
		return protocol.UIReplayOrDuplicateRejected
	default:
		return protocol.ReasonCommandDenied
	}
}

// applyDeviceCommand switches on the inbound command's action and mutates
// mode/OTA state locally, per spec.md §4.3; it never re-emits the command
// as a new outbound frame.
func (s *State) applyDeviceCommand(cmd protocol.DeviceCommand) Action {
	switch cmd.Action {
	case protocol.ActionReconnect:
		s.mode = ModeState{Mode: ModeOffline}
		return Action{Kind: ActionRaiseUIState, UIMessage: protocol.UICommandReconnect}

	case protocol.ActionRetry:
		s.mode = ModeState{Mode: ModeBooting}
		return Action{Kind: ActionRaiseUIState, UIMessage: protocol.UICommandRetry}

	case protocol.ActionRestart:
		s.mode = ModeState{Mode: ModeBooting}
		return Action{Kind: ActionRaiseUIState, UIMessage: protocol.UICommandRestart}

	case protocol.ActionOtaStart:
		s.MarkOTAStart(otaVersionFromArgs(cmd.Args))
		return Action{Kind: ActionRaiseUIState, UIMessage: protocol.UICommandOTAStart}

	case protocol.ActionDiagnosticsSnapshot:
		return Action{Kind: ActionRaiseUIState, UIMessage: protocol.UICommandDiagnostics}

	default:
		return Action{Kind: ActionRaiseUIState, UIMessage: protocol.UICommandReceived}
	}
}

// otaVersionFromArgs pulls the "version" field out of an OtaStart
// command's args, tolerating absent or malformed args.
func otaVersionFromArgs(args json.RawMessage) string {
	var payload struct {
		Version string `json:"version"`
	}
	if len(args) == 0 {
		return ""
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return ""
	}
	return payload.Version
}

// applyStatusSnapshot records status and clears pendingReconciliation only
// when isSnapshot is true; a StatusDelta received while a reconciliation
// is owed leaves the flag set, per spec.md §4.3 (only a full snapshot
// resolves the post-reconnect reconciliation).
func (s *State) applyStatusSnapshot(status protocol.DeviceStatus, nowMS uint64, isSnapshot bool) {
	s.lastStatus = &status
	if !status.WifiOK {
		s.pushDiagnostic(protocol.ReasonStatusWifiNotOK)
	}
	if isSnapshot {
		s.pendingReconciliation = false
	}
	s.noteHeartbeat(nowMS)
}

func (s *State) noteHeartbeat(nowMS uint64) {
	v := nowMS
	s.lastHeartbeat = &v
	if s.mode.Mode == ModeOffline {
		s.mode = ModeState{Mode: ModeConnected}
		s.offlineSince = nil
	}
}

func (s *State) noteSafetyFailure() {
	s.safetyFailCount++
}

// EmitCommand allocates the next outbound sequence number and builds the
// transport message that carries action to the host, recording it
// in the in-flight ledger. Outbound sequence allocation is independent
// of the inbound gate's LastSeq (I-3): emitting commands never touches
// the fingerprint gate.
func (s *State) EmitCommand(action protocol.DeviceAction, args []byte, nowMS uint64) *protocol.TransportMessage {
	s.outboundSeq++
	seq := s.outboundSeq
	corrID := fmt.Sprintf("corr-%d", seq)
	messageID := fmt.Sprintf("cmd-%d", seq)

	s.inFlight[corrID] = protocol.InFlightCommand{
		CorrID:       corrID,
		Action:       action,
		EnqueuedAtMS: nowMS,
	}

	cmd := protocol.DeviceCommand{Action: action, Args: args}
	msg := &protocol.TransportMessage{
		Envelope: protocol.Envelope{
			V:         protocol.ProtocolVersion,
			Seq:       seq,
			Source:    s.deviceID,
			DeviceID:  s.deviceID,
			MessageID: messageID,
		},
		Kind:   protocol.KindCommand,
		CorrID: &corrID,
	}
	_ = msg.EncodePayload(cmd)
	return msg
}

// EmitSnapshotRequest builds an outbound snapshot-request frame, used
// after reconnection to resynchronize device status (spec.md §4.3).
func (s *State) EmitSnapshotRequest(nowMS uint64) *protocol.TransportMessage {
	s.outboundSeq++
	seq := s.outboundSeq
	return &protocol.TransportMessage{
		Envelope: protocol.Envelope{
			V:         protocol.ProtocolVersion,
			Seq:       seq,
			Source:    s.deviceID,
			DeviceID:  s.deviceID,
			MessageID: fmt.Sprintf("snap-%d", seq),
		},
		Kind: protocol.KindSnapshotRequest,
	}
}

// MarkOfflineWithReason transitions into Offline and records when the
// transition happened, unless already offline.
func (s *State) MarkOfflineWithReason(nowMS uint64, reason string) {
	if s.mode.Mode == ModeOffline {
		return
	}
	v := nowMS
	s.offlineSince = &v
	s.mode = ModeState{Mode: ModeOffline, Reason: reason}
	s.pushDiagnostic(reason)
}

// MarkOfflineIfStale transitions into Offline when no heartbeat has
// been observed within heartbeatTimeoutMS. Returns true if the
// transition happened.
func (s *State) MarkOfflineIfStale(nowMS, heartbeatTimeoutMS uint64) bool {
	if s.mode.Mode == ModeOffline || s.mode.Mode == ModeSafeMode {
		return false
	}
	if s.lastHeartbeat == nil {
		return false
	}
	if nowMS-*s.lastHeartbeat <= heartbeatTimeoutMS {
		return false
	}
	s.MarkOfflineWithReason(nowMS, protocol.ReasonHeartbeatStale)
	return true
}

// SafetyLockdownCheck enters SafeMode once safetyFailCount reaches the
// configured limit. Returns true if the transition happened.
//
// I-4: once SafeMode is entered it is never exited by this method. The
// mode leaves SafeMode only through ApplyTransportMessage: a HelloAck
// frame, or a Reconnect, Retry or Restart command. An Unpair command
// leaves the mode unchanged.
func (s *State) SafetyLockdownCheck() bool {
	if s.mode.Mode == ModeSafeMode {
		return false
	}
	if s.safetyFailCount < s.safetyFailLimit {
		return false
	}
	s.mode = ModeState{Mode: ModeSafeMode, Reason: protocol.ReasonSafetyLockdown}
	s.pushDiagnostic(protocol.ReasonSafetyLockdown)
	return true
}

// MarkOTAStart records that an over-the-air update targeting version is
// underway.
func (s *State) MarkOTAStart(version string) {
	s.otaInProgress = true
	s.otaTargetVersion = version
	s.otaErrorReason = ""
}

// MarkOTAComplete clears the in-progress OTA state on success.
func (s *State) MarkOTAComplete() {
	s.otaInProgress = false
	s.otaErrorReason = ""
}

// MarkOTAFailed records an OTA failure reason without otherwise
// changing mode.
func (s *State) MarkOTAFailed(reason string) {
	s.otaInProgress = false
	s.otaErrorReason = reason
	s.pushDiagnostic(reason)
}

// OTAInProgress reports whether an OTA update is currently underway.
func (s *State) OTAInProgress() bool { return s.otaInProgress }

// MarkBootSuccess clears the persisted boot failure counter, confirming
// the current firmware booted cleanly.
func (s *State) MarkBootSuccess() error {
	s.bootFailureCount = 0
	if s.store == nil {
		return nil
	}
	return s.store.SetU32(storage.KeyBootFailureCount, 0)
}

// MarkBootFailure increments and persists the boot failure counter. It
// enters SafeMode once bootRetryLimit is reached; otherwise it enters
// Error and stays there (it does not go on to Offline).
func (s *State) MarkBootFailure() error {
	s.bootFailureCount++
	if s.store != nil {
		if err := s.store.SetU32(storage.KeyBootFailureCount, s.bootFailureCount); err != nil {
			return fmt.Errorf("persist boot failure count: %w", err)
		}
	}
	if s.bootFailureCount >= s.bootRetryLimit {
		s.mode = ModeState{Mode: ModeSafeMode, Reason: protocol.ReasonBootFailuresExceeded}
		return nil
	}
	s.mode = ModeState{Mode: ModeError, Reason: protocol.ReasonBootFailureDetected}
	return nil
}

// BootFailureCount returns the persisted boot failure counter.
func (s *State) BootFailureCount() uint32 { return s.bootFailureCount }

// ReclaimStaleInflight removes in-flight commands that have been
// outstanding longer than timeoutMS and returns their correlation IDs,
// so the caller can surface a timeout error to the UI (spec.md §4.3,
// I-2 exception: commands never silently vanish from the ledger).
func (s *State) ReclaimStaleInflight(nowMS, timeoutMS uint64) []string {
	var reclaimed []string
	for corrID, cmd := range s.inFlight {
		if nowMS-cmd.EnqueuedAtMS > timeoutMS {
			reclaimed = append(reclaimed, corrID)
			delete(s.inFlight, corrID)
		}
	}
	return reclaimed
}

// PendingReconciliation reports whether a reconciliation pass with the
// host is still owed (e.g. after reconnecting following an offline
// period).
func (s *State) PendingReconciliation() bool { return s.pendingReconciliation }

// SetPendingReconciliation marks whether a reconciliation pass is owed.
func (s *State) SetPendingReconciliation(pending bool) { s.pendingReconciliation = pending }

// GateLastSeq exposes the fingerprint gate's last accepted sequence
// number, for diagnostics/tests.
func (s *State) GateLastSeq() uint64 { return s.gate.LastSeq() }

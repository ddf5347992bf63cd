package devicestate

import "github.com/nanoclaw/nanoclaw/internal/protocol"

// ActionKind tags the variant of an Action (Go has no payload-carrying
// enum, so Action is a struct tagged by kind, mirroring runtime.rs's
// RuntimeAction).
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionEmitAck
	ActionEmitCommand
	ActionRaiseUIState
)

// Action is a side effect the caller (deviceloop, C4) must carry out
// after a State method returns: send a frame, render a UI message, or
// nothing at all.
type Action struct {
	Kind      ActionKind
	CorrID    string
	Status    protocol.DeviceStatus
	Command   protocol.DeviceCommand
	UIMessage string
}

func noAction() Action { return Action{Kind: ActionNone} }

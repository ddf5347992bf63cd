package protocol

import "encoding/json"

// DeviceAction enumerates the command verbs a Command/HostCommand frame
// can carry.
type DeviceAction string

const (
	ActionReconnect           DeviceAction = "reconnect"
	ActionWifiReconnect       DeviceAction = "wifi_reconnect"
	ActionStatusGet           DeviceAction = "status_get"
	ActionOtaStart            DeviceAction = "ota_start"
	ActionOpenConversation    DeviceAction = "open_conversation"
	ActionMicToggle           DeviceAction = "mic_toggle"
	ActionMute                DeviceAction = "mute"
	ActionEndSession          DeviceAction = "end_session"
	ActionSyncNow             DeviceAction = "sync_now"
	ActionUnpair              DeviceAction = "unpair"
	ActionDiagnosticsSnapshot DeviceAction = "diagnostics_snapshot"
	ActionRestart             DeviceAction = "restart"
	ActionRetry               DeviceAction = "retry"
	ActionUnknown             DeviceAction = "unknown"
)

// DeviceCommand is the decoded payload of a Command/HostCommand frame.
type DeviceCommand struct {
	Action DeviceAction    `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// InFlightCommand is a ledger entry for a command awaiting ack/result.
type InFlightCommand struct {
	CorrID       string
	Action       DeviceAction
	EnqueuedAtMS uint64
}

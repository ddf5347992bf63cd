package protocol

// ProtocolError is the payload carried by an Error frame.
type ProtocolError struct {
	Code         string  `json:"code"`
	Detail       string  `json:"detail"`
	Recoverable  bool    `json:"recoverable"`
	RetryAfterMs *uint64 `json:"retry_after_ms,omitempty"`
}

// Rejection reason codes (spec.md §7 "Rejected" taxonomy).
const (
	ReasonDeniedUnauthorizedSource = "denied_unauthorized_source"
	ReasonExpiredTTL               = "expired_ttl"
	ReasonReplayOrDuplicate        = "replay_or_duplicate"
	ReasonCommandDenied            = "command_denied"
	ReasonCommandParseError        = "command_parse_error"
)

// Lifecycle reason codes (spec.md §7 "Lifecycle" taxonomy).
const (
	ReasonOfflineTimeout       = "offline_timeout"
	ReasonHeartbeatStale       = "heartbeat_stale"
	ReasonStatusWifiNotOK      = "status_wifi_not_ok"
	ReasonBootFailureDetected  = "boot_failure_detected"
	ReasonBootFailuresExceeded = "boot_failures_exceeded"
	ReasonSafetyLockdown       = "safety_lockdown"
)

// UI message tags (spec.md §8 literal scenario strings). These are the
// exact strings raised to the UI layer by the device state machine and
// event loop; unlike the reason codes above they are user-facing, not
// diagnostic.
const (
	UIConnected                       = "connected"
	UIMessageExpiredTTL               = "message_expired_ttl"
	UIReplayOrDuplicateRejected       = "replay_or_duplicate_rejected"
	UICommandDeniedUnauthorizedSource = "command_denied_unauthorized_source"
	UICommandReconnect                = "command_reconnect"
	UICommandRetry                    = "command_retry"
	UICommandRestart                  = "command_restart"
	UICommandOTAStart                 = "command_ota_start"
	UICommandDiagnostics              = "command_diagnostics"
	UICommandReceived                 = "command_received"
	UICommandParseError               = "command_parse_error"
	UIEmitCommand                     = "emit_command"
)

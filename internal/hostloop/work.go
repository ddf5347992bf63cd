package hostloop

import (
	"encoding/json"

	"github.com/nanoclaw/nanoclaw/internal/protocol"
)

// WorkKind discriminates the two shapes of queued work the host runtime
// drains (spec.md §4.9 step 6).
type WorkKind string

const (
	WorkCommand       WorkKind = "command"
	WorkScheduledTask WorkKind = "scheduled_task"
)

// Work is the payload carried by a queue.Item, round-tripped through
// JSON since queue.Item.Payload is opaque to the queue package.
type Work struct {
	Kind WorkKind `json:"kind"`

	// WorkCommand fields.
	Action         protocol.DeviceAction `json:"action,omitempty"`
	CorrID         string                `json:"corr_id,omitempty"`
	TargetDeviceID string                `json:"target_device_id,omitempty"`
	DeviceID       string                `json:"device_id,omitempty"`
	Args           json.RawMessage       `json:"args,omitempty"`

	// WorkScheduledTask field: the task ID, looked up fresh from the
	// store at dispatch time so retries always see current fields.
	TaskID string `json:"task_id,omitempty"`
}

func encodeWork(w Work) json.RawMessage {
	raw, err := json.Marshal(w)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

func decodeWork(raw json.RawMessage) (Work, error) {
	var w Work
	err := json.Unmarshal(raw, &w)
	return w, err
}

package protocol

// TouchPhase enumerates the pointer lifecycle phases a touch driver
// reports.
type TouchPhase string

const (
	TouchDown    TouchPhase = "down"
	TouchMove    TouchPhase = "move"
	TouchUp      TouchPhase = "up"
	TouchCancel  TouchPhase = "cancel"
	TouchUnknown TouchPhase = "unknown"
)

// TouchEventPayload is the payload of a TouchEvent frame, and the shape
// produced by a TouchDriver.
type TouchEventPayload struct {
	PointerID      uint8      `json:"pointer_id"`
	Phase          TouchPhase `json:"phase"`
	X              uint16     `json:"x"`
	Y              uint16     `json:"y"`
	Pressure       *uint16    `json:"pressure,omitempty"`
	RawTimestampMS *uint64    `json:"raw_timestamp_ms,omitempty"`
}

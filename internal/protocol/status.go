package protocol

// DeviceStatus is the payload carried by StatusSnapshot/StatusDelta frames.
type DeviceStatus struct {
	WifiOK         bool    `json:"wifi_ok"`
	HostReachable  bool    `json:"host_reachable"`
	Mode           *string `json:"mode,omitempty"`
	Scene          *string `json:"scene,omitempty"`
	BatteryPercent *uint8  `json:"battery_percent,omitempty"`
	QueueDepth     *uint16 `json:"queue_depth,omitempty"`
	OtaState       *string `json:"ota_state,omitempty"`
	HostLatencyMs  *uint32 `json:"host_latency_ms,omitempty"`
	RSSIDbm        *int32  `json:"rssi_dbm,omitempty"`
}

// StringPtr returns a pointer to a copy of s, for building optional fields.
func StringPtr(s string) *string { return &s }

// Uint64Ptr returns a pointer to a copy of v.
func Uint64Ptr(v uint64) *uint64 { return &v }

package config

// DeviceConfig is the device runtime's full configuration. There is no
// original_source counterpart (microclaw-config only has HostConfig);
// field names and defaults are grounded on the tuning parameters the
// device packages already take directly (deviceloop.Config,
// devicestate's safety/boot limits, fingerprint's allowlist).
type DeviceConfig struct {
	DeviceID          string   `yaml:"device_id"`
	HostAllowlist     []string `yaml:"host_allowlist"`
	BusURL            string   `yaml:"bus_url"`
	StorePath         string   `yaml:"store_path"`
	ProtocolLogPath   string   `yaml:"protocol_log_path"`
	RenderIntervalMS  uint64   `yaml:"render_interval_ms"`
	OfflineTimeoutMS  uint64   `yaml:"offline_timeout_ms"`
	InflightTimeoutMS uint64   `yaml:"inflight_timeout_ms"`
	SafetyFailLimit   int      `yaml:"safety_fail_limit"`
	BootRetryLimit    int      `yaml:"boot_retry_limit"`
	TickIntervalMS    uint64   `yaml:"tick_interval_ms"`
	DisplayWidth      uint16   `yaml:"display_width"`
	DisplayHeight     uint16   `yaml:"display_height"`
}

// DefaultDeviceConfig matches the defaults already baked into
// deviceloop.DefaultConfig and devicestate's safety/boot limit constants.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		DeviceID:          "nanoclaw-device",
		RenderIntervalMS:  250,
		OfflineTimeoutMS:  15_000,
		InflightTimeoutMS: 10_000,
		SafetyFailLimit:   5,
		BootRetryLimit:    3,
		TickIntervalMS:    16,
		DisplayWidth:      480,
		DisplayHeight:     320,
	}
}

// DeviceConfigFromEnv builds a DeviceConfig starting from
// DefaultDeviceConfig and applying any NANOCLAW_-prefixed overrides.
func DeviceConfigFromEnv() DeviceConfig {
	c := DefaultDeviceConfig()

	setString(&c.DeviceID, "NANOCLAW_DEVICE_ID")
	setStringList(&c.HostAllowlist, "NANOCLAW_HOST_ALLOWLIST")
	setString(&c.BusURL, "NANOCLAW_BUS_URL")
	setString(&c.StorePath, "NANOCLAW_STORE_PATH")
	setString(&c.ProtocolLogPath, "NANOCLAW_PROTOCOL_LOG_PATH")
	setUint64(&c.RenderIntervalMS, "NANOCLAW_RENDER_INTERVAL_MS")
	setUint64(&c.OfflineTimeoutMS, "NANOCLAW_OFFLINE_TIMEOUT_MS")
	setUint64(&c.InflightTimeoutMS, "NANOCLAW_INFLIGHT_TIMEOUT_MS")
	setIntMin(&c.SafetyFailLimit, "NANOCLAW_SAFETY_FAIL_LIMIT", 1)
	setIntMin(&c.BootRetryLimit, "NANOCLAW_BOOT_RETRY_LIMIT", 1)
	setUint64Min(&c.TickIntervalMS, "NANOCLAW_TICK_INTERVAL_MS", 1)
	setUint16(&c.DisplayWidth, "NANOCLAW_DISPLAY_WIDTH")
	setUint16(&c.DisplayHeight, "NANOCLAW_DISPLAY_HEIGHT")

	return c
}

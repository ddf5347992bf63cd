// Package config loads DeviceConfig/HostConfig from NANOCLAW_-prefixed
// environment variables, with an optional YAML file overlay applied on
// top of the environment-derived defaults.
package config

import (
	"os"
	"strconv"
	"strings"
)

// HostConfig is the host daemon's full runtime configuration, ported
// field-for-field from the original microclaw-config crate's
// HostConfig/from_env (spec.md's Environment/config line).
type HostConfig struct {
	HostID                      string   `yaml:"host_id"`
	DeviceID                    string   `yaml:"device_id"`
	ContainerBackend            string   `yaml:"container_backend"`
	ContainerImage              string   `yaml:"container_image"`
	TickIntervalMS              uint64   `yaml:"tick_interval_ms"`
	MaxInflight                 int      `yaml:"max_inflight"`
	QueueRetryMaxAttempts       int      `yaml:"queue_retry_max_attempts"`
	QueueRetryBackoffMS         uint64   `yaml:"queue_retry_backoff_ms"`
	SchedulerPollIntervalMS     uint64   `yaml:"scheduler_poll_interval_ms"`
	StorePath                   string   `yaml:"store_path"`
	BusAddress                  string   `yaml:"bus_address"`
	MountAllowlist              []string `yaml:"mount_allowlist"`
	EgressAllowlist             []string `yaml:"egress_allowlist"`
	AllowedSources              []string `yaml:"allowed_sources"`
	AllowedHostActions          []string `yaml:"allowed_host_actions"`
	TransportReconnectBackoffMS uint64   `yaml:"transport_reconnect_backoff_ms"`
	HealthLogIntervalMS         uint64   `yaml:"health_log_interval_ms"`
	DryRun                      bool     `yaml:"dry_run"`
}

// DefaultHostConfig matches the original crate's Default impl.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		HostID:                      "nanoclaw-host",
		DeviceID:                    "nanoclaw-device",
		ContainerBackend:            "apple",
		ContainerImage:              "nanoclaw-agent:latest",
		TickIntervalMS:              250,
		MaxInflight:                 4,
		QueueRetryMaxAttempts:       3,
		QueueRetryBackoffMS:         500,
		SchedulerPollIntervalMS:     1000,
		MountAllowlist:              []string{"/tmp"},
		EgressAllowlist:             nil,
		AllowedSources:              nil,
		AllowedHostActions:          []string{"status_get", "sync_now"},
		TransportReconnectBackoffMS: 1000,
		HealthLogIntervalMS:         5000,
		DryRun:                      false,
	}
}

// HostConfigFromEnv builds a HostConfig starting from DefaultHostConfig
// and applying any NANOCLAW_-prefixed overrides found in the process
// environment.
func HostConfigFromEnv() HostConfig {
	c := DefaultHostConfig()

	setString(&c.HostID, "NANOCLAW_HOST_ID")
	setString(&c.DeviceID, "NANOCLAW_DEVICE_ID")
	if v, ok := lookupTrimmed("NANOCLAW_CONTAINER_BACKEND"); ok {
		c.ContainerBackend = strings.ToLower(v)
	}
	setString(&c.ContainerImage, "NANOCLAW_CONTAINER_IMAGE")
	setUint64(&c.TickIntervalMS, "NANOCLAW_TICK_INTERVAL_MS")
	setIntMin(&c.MaxInflight, "NANOCLAW_MAX_INFLIGHT", 1)
	setIntMin(&c.QueueRetryMaxAttempts, "NANOCLAW_QUEUE_RETRY_MAX_ATTEMPTS", 1)
	setUint64(&c.QueueRetryBackoffMS, "NANOCLAW_QUEUE_RETRY_BACKOFF_MS")
	setUint64Min(&c.SchedulerPollIntervalMS, "NANOCLAW_SCHEDULER_POLL_INTERVAL_MS", 100)
	setString(&c.StorePath, "NANOCLAW_STORE_PATH")
	setString(&c.BusAddress, "NANOCLAW_BUS_ADDRESS")
	setStringList(&c.MountAllowlist, "NANOCLAW_MOUNT_ALLOWLIST")
	setStringList(&c.EgressAllowlist, "NANOCLAW_EGRESS_ALLOWLIST")
	setStringList(&c.AllowedSources, "NANOCLAW_ALLOWED_SOURCES")
	setStringList(&c.AllowedHostActions, "NANOCLAW_ALLOWED_HOST_ACTIONS")
	setUint64(&c.TransportReconnectBackoffMS, "NANOCLAW_TRANSPORT_RECONNECT_BACKOFF_MS")
	setUint64Min(&c.HealthLogIntervalMS, "NANOCLAW_HEALTH_LOG_INTERVAL_MS", 500)
	if v, ok := lookupTrimmed("NANOCLAW_DRY_RUN"); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.DryRun = parsed
		}
	}

	return c
}

func lookupTrimmed(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

func setString(dst *string, key string) {
	if v, ok := lookupTrimmed(key); ok {
		*dst = v
	}
}

func setUint64(dst *uint64, key string) {
	if v, ok := lookupTrimmed(key); ok {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}

func setUint16(dst *uint16, key string) {
	if v, ok := lookupTrimmed(key); ok {
		if parsed, err := strconv.ParseUint(v, 10, 16); err == nil {
			*dst = uint16(parsed)
		}
	}
}

func setUint64Min(dst *uint64, key string, min uint64) {
	if v, ok := lookupTrimmed(key); ok {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			if parsed < min {
				parsed = min
			}
			*dst = parsed
		}
	}
}

func setIntMin(dst *int, key string, min int) {
	if v, ok := lookupTrimmed(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			if parsed < min {
				parsed = min
			}
			*dst = parsed
		}
	}
}

func setStringList(dst *[]string, key string) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(entry)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*dst = out
}

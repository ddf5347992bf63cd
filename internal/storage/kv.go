// Package storage implements the persistence wrapper (spec.md §4.10,
// component C10): a typed key/value abstraction used by the device state
// machine (boot_failure_count, device_id, host_allowlist) and a
// sqlite-backed implementation of the reference schema in spec.md §6.
package storage

// KV is the typed key/value capability the core depends on. Implementors
// must be single-writer per process (spec.md §5) — the runtime that opens
// a KV owns it exclusively.
type KV interface {
	GetU32(key string) (uint32, bool)
	SetU32(key string, value uint32) error
	GetString(key string) (string, bool)
	SetString(key string, value string) error
	GetBytes(key string) ([]byte, bool)
	SetBytes(key string, value []byte) error
	// Remove clears all type-variants stored under key.
	Remove(key string) error
}

// Well-known keys the core reads/writes (spec.md §4.10).
const (
	KeyBootFailureCount = "boot_failure_count"
	KeyDeviceID         = "device_id"
	KeyHostAllowlist    = "host_allowlist"
)

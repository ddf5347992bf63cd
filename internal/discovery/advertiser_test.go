package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStopOnIdleAdvertiserIsSafe(t *testing.T) {
	a := New()
	a.Stop() // no registration yet; must not panic
}

func TestTXTRecordsCarryDeviceIDAndVersion(t *testing.T) {
	records := txtRecords(Info{DeviceID: "dev-1", Port: 8080})
	require.Contains(t, records, "device_id=dev-1")
	require.Contains(t, records, "v=1")
}

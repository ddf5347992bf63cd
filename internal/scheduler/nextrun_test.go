package scheduler_test

import (
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func TestComputeNextRunOnceReturnsNil(t *testing.T) {
	next, err := scheduler.ComputeNextRun(scheduler.ScheduleOnce, "", 1000)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestComputeNextRunIntervalAddsParsedDuration(t *testing.T) {
	next, err := scheduler.ComputeNextRun(scheduler.ScheduleInterval, "30s", 1_000)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, uint64(31_000), *next)
}

func TestComputeNextRunIntervalRejectsUnparsableValue(t *testing.T) {
	_, err := scheduler.ComputeNextRun(scheduler.ScheduleInterval, "not-a-duration", 0)
	require.Error(t, err)
}

func TestComputeNextRunCronFindsNextMatch(t *testing.T) {
	// 2024-01-01T00:00:00Z in ms; cron "0 * * * *" fires at the top of
	// every hour.
	const midnightMS = 1704067200000
	next, err := scheduler.ComputeNextRun(scheduler.ScheduleCron, "0 * * * *", midnightMS+1)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, uint64(midnightMS+3_600_000), *next)
}

func TestComputeNextRunRejectsUnknownScheduleType(t *testing.T) {
	_, err := scheduler.ComputeNextRun("bogus", "", 0)
	require.Error(t, err)
}

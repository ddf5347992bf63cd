package log_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	nclog "github.com/nanoclaw/nanoclaw/internal/log"
	"github.com/stretchr/testify/require"
)

func TestNoopLoggerDiscardsEvents(t *testing.T) {
	var l nclog.NoopLogger
	l.Log(nclog.Event{DeviceID: "dev-1"})
}

func TestFileLoggerWritesDecodableCBORStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")
	fl, err := nclog.NewFileLogger(path)
	require.NoError(t, err)

	ev := nclog.Event{
		Timestamp: time.Now(),
		DeviceID:  "dev-1",
		Direction: nclog.DirectionOut,
		Category:  nclog.CategoryFrame,
		FrameKind: "command",
		FrameSize: 128,
	}
	fl.Log(ev)
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded nclog.Event
	require.NoError(t, cbor.Unmarshal(data, &decoded))
	require.Equal(t, "dev-1", decoded.DeviceID)
	require.Equal(t, "command", decoded.FrameKind)
}

func TestFileLoggerIgnoresLogAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")
	fl, err := nclog.NewFileLogger(path)
	require.NoError(t, err)
	require.NoError(t, fl.Close())

	fl.Log(nclog.Event{DeviceID: "dev-1"})

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

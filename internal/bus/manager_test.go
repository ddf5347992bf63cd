package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManagerConnectSucceedsAndResetsBackoff(t *testing.T) {
	calls := 0
	m := NewManager(func(ctx context.Context) error {
		calls++
		return nil
	})
	m.backoff.Next()
	require.Equal(t, 1, m.backoff.Attempts())
	require.NoError(t, m.Connect(context.Background()))
	require.True(t, m.IsConnected())
	require.Equal(t, 1, calls)
	require.Equal(t, 0, m.backoff.Attempts())
}

func TestManagerConnectReturnsErrorOnFailure(t *testing.T) {
	m := NewManager(func(ctx context.Context) error {
		return errors.New("dial failed")
	})
	err := m.Connect(context.Background())
	require.Error(t, err)
	require.Equal(t, StateDisconnected, m.State())
}

func TestManagerReconnectsAfterConnectionLost(t *testing.T) {
	attempts := 0
	connected := make(chan struct{}, 1)
	m := NewManager(func(ctx context.Context) error {
		attempts++
		// The initial Connect (attempt 1) succeeds; the first reconnect
		// attempt after the loss fails and the second succeeds.
		if attempts > 1 && attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	m.OnConnected(func() { connected <- struct{}{} })

	require.NoError(t, m.Connect(context.Background()))
	m.StartReconnectLoop()
	m.NotifyConnectionLost()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reconnect")
	}
	require.True(t, m.IsConnected())
	require.GreaterOrEqual(t, attempts, 3)
	m.Close()
}

func TestManagerCloseStopsReconnectLoop(t *testing.T) {
	m := NewManager(func(ctx context.Context) error { return errors.New("always fails") })
	m.StartReconnectLoop()
	m.NotifyConnectionLost()
	m.Close()
	require.Equal(t, StateClosed, m.State())
}

package queue_test

import (
	"testing"

	"github.com/nanoclaw/nanoclaw/internal/queue"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAndNextReadyPreservesPerGroupFIFO(t *testing.T) {
	q := queue.New(queue.Config{MaxInflight: 10})
	q.Enqueue("g1", "a", nil)
	q.Enqueue("g1", "b", nil)
	q.Enqueue("g1", "c", nil)

	first, ok := q.NextReady(0)
	require.True(t, ok)
	require.Equal(t, "a", first.ID)
	q.Complete(first, true, 0)

	second, ok := q.NextReady(0)
	require.True(t, ok)
	require.Equal(t, "b", second.ID)
}

func TestNextReadyRespectsMaxInflightAcrossGroups(t *testing.T) {
	q := queue.New(queue.Config{MaxInflight: 1})
	q.Enqueue("g1", "a", nil)
	q.Enqueue("g2", "b", nil)

	_, ok := q.NextReady(0)
	require.True(t, ok)

	_, ok = q.NextReady(0)
	require.False(t, ok, "global in-flight bound reached")
}

func TestEnqueueDoesNotDuplicateQueuedOrInflightItem(t *testing.T) {
	q := queue.New(queue.Config{MaxInflight: 10})
	q.Enqueue("g1", "a", nil)
	q.Enqueue("g1", "a", nil)
	require.Equal(t, 1, q.Depth())

	item, _ := q.NextReady(0)
	q.Enqueue("g1", "a", nil)
	require.Equal(t, 0, q.Depth(), "item is in-flight, not re-queued")
	q.Complete(item, true, 0)
}

func TestCompleteRetriesWithBackoffOnFailure(t *testing.T) {
	q := queue.New(queue.Config{MaxInflight: 10, BaseBackoffMS: 100, MaxAttempts: 5})
	q.Enqueue("g1", "a", nil)

	item, _ := q.NextReady(0)
	q.Complete(item, false, 1000)

	_, ok := q.NextReady(1000)
	require.False(t, ok, "not yet visible again")

	retried, ok := q.NextReady(1200)
	require.True(t, ok)
	require.Equal(t, "a", retried.ID)
	require.Equal(t, 1, retried.Attempts)
}

func TestCompleteDropsItemAfterMaxAttemptsExhausted(t *testing.T) {
	q := queue.New(queue.Config{MaxInflight: 10, BaseBackoffMS: 1, MaxAttempts: 2})
	q.Enqueue("g1", "a", nil)

	now := uint64(0)
	for i := 0; i < 2; i++ {
		item, ok := q.NextReady(now)
		require.True(t, ok)
		q.Complete(item, false, now)
		now += 10_000
	}

	_, ok := q.NextReady(now)
	require.False(t, ok, "item dropped after exhausting attempts")
	require.Equal(t, 0, q.Depth())
}

func TestInflightCountAndDepthReflectQueueState(t *testing.T) {
	q := queue.New(queue.Config{MaxInflight: 10})
	q.Enqueue("g1", "a", nil)
	q.Enqueue("g2", "b", nil)
	require.Equal(t, 2, q.Depth())

	item, _ := q.NextReady(0)
	require.Equal(t, 1, q.InflightCount())
	require.Equal(t, 1, q.Depth())
	q.Complete(item, true, 0)
	require.Equal(t, 0, q.InflightCount())
}

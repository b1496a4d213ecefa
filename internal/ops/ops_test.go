package ops_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/githound/githound/internal/ops"
)

func TestOperationLifecycle(t *testing.T) {
	op := ops.NewOperation("alice")

	snap := op.Snapshot()
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "alice", snap.UserID)
	assert.Equal(t, ops.StatusPending, snap.Status)
	assert.False(t, snap.Status.Terminal())

	require.True(t, op.Start())
	assert.Equal(t, ops.StatusRunning, op.Snapshot().Status)

	// Starting twice is rejected.
	assert.False(t, op.Start())

	op.SetProgress(0.5, "halfway", 3)

	snap = op.Snapshot()
	assert.InDelta(t, 0.5, snap.Progress, 1e-9)
	assert.Equal(t, "halfway", snap.Message)
	assert.Equal(t, 3, snap.ResultsCount)

	op.Complete("done", 7)

	snap = op.Snapshot()
	assert.Equal(t, ops.StatusCompleted, snap.Status)
	assert.Equal(t, 7, snap.ResultsCount)
	assert.InDelta(t, 1.0, snap.Progress, 1e-9)
	require.NotNil(t, snap.CompletedAt)
}

func TestTerminalStatesAbsorb(t *testing.T) {
	op := ops.NewOperation("alice")
	op.Start()
	op.Complete("done", 1)

	// No transition out of a terminal state.
	op.Fail("late failure")
	assert.Equal(t, ops.StatusCompleted, op.Snapshot().Status)

	assert.False(t, op.Cancel())
	assert.Equal(t, ops.StatusCompleted, op.Snapshot().Status)

	op.SetProgress(0.1, "stale", 0)
	assert.InDelta(t, 1.0, op.Snapshot().Progress, 1e-9)
}

func TestCancelIdempotent(t *testing.T) {
	op := ops.NewOperation("alice")
	op.Start()

	assert.True(t, op.Cancel())
	assert.Equal(t, ops.StatusCancelled, op.Snapshot().Status)
	assert.True(t, op.Cancelled())

	// Second cancel is a no-op.
	assert.False(t, op.Cancel())
	assert.Equal(t, ops.StatusCancelled, op.Snapshot().Status)
}

func TestFailCarriesMessage(t *testing.T) {
	op := ops.NewOperation("alice")
	op.Start()
	op.Fail("search timed out after 1s")

	snap := op.Snapshot()
	assert.Equal(t, ops.StatusFailed, snap.Status)
	assert.Equal(t, "search timed out after 1s", snap.Message)
}

func TestConcurrentProgressAndCancel(t *testing.T) {
	op := ops.NewOperation("alice")
	op.Start()

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			op.SetProgress(float64(i)/50, "working", i)
		}()
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		op.Cancel()
	}()

	wg.Wait()

	assert.Equal(t, ops.StatusCancelled, op.Snapshot().Status)
}

func TestRegistryOwnership(t *testing.T) {
	registry := ops.NewRegistry(ops.NewMemoryStore())

	op, err := registry.Create("alice")
	require.NoError(t, err)

	snap, err := registry.Get(op.ID(), "alice")
	require.NoError(t, err)
	assert.Equal(t, op.ID(), snap.ID)

	_, err = registry.Get(op.ID(), "bob")
	require.ErrorIs(t, err, ops.ErrForbidden)

	_, err = registry.Cancel(op.ID(), "bob")
	require.ErrorIs(t, err, ops.ErrForbidden)

	_, err = registry.Get("unknown-id", "alice")
	require.ErrorIs(t, err, ops.ErrOperationNotFound)
}

func TestRegistryCancel(t *testing.T) {
	registry := ops.NewRegistry(ops.NewMemoryStore())

	op, err := registry.Create("alice")
	require.NoError(t, err)
	op.Start()

	snap, err := registry.Cancel(op.ID(), "alice")
	require.NoError(t, err)
	assert.Equal(t, ops.StatusCancelled, snap.Status)

	// Idempotent through the registry too.
	snap, err = registry.Cancel(op.ID(), "alice")
	require.NoError(t, err)
	assert.Equal(t, ops.StatusCancelled, snap.Status)
}

func TestMemoryStore(t *testing.T) {
	store := ops.NewMemoryStore()

	op := ops.NewOperation("alice")
	require.NoError(t, store.Put(op))

	got, err := store.Get(op.ID())
	require.NoError(t, err)
	assert.Same(t, op, got)

	assert.Len(t, store.List(), 1)

	require.NoError(t, store.Delete(op.ID()))

	_, err = store.Get(op.ID())
	require.ErrorIs(t, err, ops.ErrOperationNotFound)
}

func TestJanitorEvictsTerminal(t *testing.T) {
	store := ops.NewMemoryStore()

	done := ops.NewOperation("alice")
	done.Start()
	done.Complete("done", 0)
	require.NoError(t, store.Put(done))

	running := ops.NewOperation("alice")
	running.Start()
	require.NoError(t, store.Put(running))

	// Retention of zero evicts terminal operations immediately.
	ops.EvictExpiredForTest(store, time.Now().Add(time.Hour), 0, nil)

	_, err := store.Get(done.ID())
	require.ErrorIs(t, err, ops.ErrOperationNotFound)

	_, err = store.Get(running.ID())
	require.NoError(t, err)
}

func TestJanitorNotifiesEvictions(t *testing.T) {
	store := ops.NewMemoryStore()

	done := ops.NewOperation("alice")
	done.Start()
	done.Complete("done", 0)
	require.NoError(t, store.Put(done))

	running := ops.NewOperation("alice")
	running.Start()
	require.NoError(t, store.Put(running))

	var evicted []string

	ops.EvictExpiredForTest(store, time.Now().Add(time.Hour), 0, func(id string) {
		evicted = append(evicted, id)
	})

	// Only the evicted operation is reported, never the running one.
	assert.Equal(t, []string{done.ID()}, evicted)
}

func TestChannelPublisher(t *testing.T) {
	pub := ops.NewChannelPublisher()

	events, cancel := pub.Subscribe()
	defer cancel()

	pub.Publish(ops.Event{Type: ops.EventProgress, SearchID: "s1", Progress: 0.25})

	select {
	case event := <-events:
		assert.Equal(t, ops.EventProgress, event.Type)
		assert.Equal(t, "s1", event.SearchID)
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestChannelPublisherUnsubscribe(t *testing.T) {
	pub := ops.NewChannelPublisher()

	events, cancel := pub.Subscribe()
	cancel()

	// Publishing after unsubscribe must not panic; the channel is closed.
	pub.Publish(ops.Event{Type: ops.EventStatus, SearchID: "s1"})

	_, open := <-events
	assert.False(t, open)
}

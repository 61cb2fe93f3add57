package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubQueue_StartsInPausedState(t *testing.T) {
	sq := NewSubQueue[int](10)
	defer sq.Close()

	sq.Enqueue(42)

	// Nothing may arrive while paused
	select {
	case <-sq.Chan():
		t.Fatal("should not receive value while paused")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubQueue_ResumeDeliversQueuedInOrder(t *testing.T) {
	sq := NewSubQueue[int](10)
	defer sq.Close()

	sq.Enqueue(1)
	sq.Enqueue(2)
	sq.Enqueue(3)

	sq.SetPaused(false)

	assert.Equal(t, 1, <-sq.Chan())
	assert.Equal(t, 2, <-sq.Chan())
	assert.Equal(t, 3, <-sq.Chan())
}

func TestSubQueue_SnapshotBeforeLive(t *testing.T) {
	sq := NewSubQueue[string](10)
	defer sq.Close()

	// Live event enqueued during the snapshot phase
	sq.Enqueue("live")
	sq.OutOfBandSnapshotSend("snapshot")
	sq.SetPaused(false)

	assert.Equal(t, "snapshot", <-sq.Chan())
	assert.Equal(t, "live", <-sq.Chan())
}

func TestSubQueue_CloseClosesChannel(t *testing.T) {
	sq := NewSubQueue[int](1)
	sq.Close()

	select {
	case _, ok := <-sq.Chan():
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestSubQueue_EnqueueAfterCloseIsDropped(t *testing.T) {
	sq := NewSubQueue[int](1)
	sq.Close()

	assert.NotPanics(t, func() {
		sq.Enqueue(7)
	})
}

package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunTrackerBroadcastsToSubscribers(t *testing.T) {
	tracker := newRunTracker()
	ch := tracker.subscribe()
	defer tracker.unsubscribe(ch)

	ev := RunEvent{Type: "started", SourceID: 5, At: time.Now()}
	tracker.broadcast(ev)

	select {
	case got := <-ch:
		assert.Equal(t, ev.SourceID, got.SourceID)
		assert.Equal(t, "started", got.Type)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast event, got none")
	}
}

func TestRunTrackerDropsEventsForSlowClients(t *testing.T) {
	tracker := newRunTracker()
	ch := tracker.subscribe()
	defer tracker.unsubscribe(ch)

	for i := 0; i < 32; i++ {
		tracker.broadcast(RunEvent{Type: "started", SourceID: int64(i)})
	}
	// Channel buffer is 16; broadcast must never block even when full.
	assert.LessOrEqual(t, len(ch), 16)
}

func TestRunTrackerUnsubscribeClosesChannel(t *testing.T) {
	tracker := newRunTracker()
	ch := tracker.subscribe()
	tracker.unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestRunTrackerIgnoresUnsubscribedClient(t *testing.T) {
	tracker := newRunTracker()
	ch1 := tracker.subscribe()
	ch2 := tracker.subscribe()
	tracker.unsubscribe(ch1)
	defer tracker.unsubscribe(ch2)

	tracker.broadcast(RunEvent{Type: "finished"})

	select {
	case got := <-ch2:
		assert.Equal(t, "finished", got.Type)
	case <-time.After(time.Second):
		t.Fatal("expected ch2 to receive the broadcast")
	}
}

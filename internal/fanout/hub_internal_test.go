package fanout

import (
	"testing"

	"pressroom/internal/logging"
)

// A subscriber closed after Publish took its snapshot is skipped, not counted
// as a drop.
func TestPublishToClosingSubscriberIsNotADrop(t *testing.T) {
	hub := NewHub(1, logging.NewNop())
	leaving := hub.Subscribe()
	staying := hub.Subscribe()
	leaving.close()

	if got := leaving.offer(Event{Type: TypeTaskDone}); got != offerClosed {
		t.Fatalf("offer on closed subscription = %v, want offerClosed", got)
	}
	if n := hub.Publish(Event{Type: TypeTaskDone}); n != 1 {
		t.Fatalf("Publish delivered to %d, want 1", n)
	}
	stats := hub.Stats()
	if stats.Dropped != 0 || leaving.Dropped() != 0 {
		t.Fatalf("closed subscriber counted as drop: hub=%d sub=%d", stats.Dropped, leaving.Dropped())
	}

	// A full buffer is still a drop.
	hub.Publish(Event{Type: TypeTaskDone})
	if stats := hub.Stats(); stats.Dropped != 1 || staying.Dropped() != 1 {
		t.Fatalf("expected one drop for the full buffer, got hub=%d sub=%d", stats.Dropped, staying.Dropped())
	}
}

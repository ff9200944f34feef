package fanout_test

import (
	"sync"
	"testing"
	"time"

	"pressroom/internal/fanout"
	"pressroom/internal/logging"
)

func TestPublishDropsBeyondCapacityWithoutBlocking(t *testing.T) {
	const capacity = 4
	const published = capacity + 6
	hub := fanout.NewHub(capacity, logging.NewNop())
	sub := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 1; i <= published; i++ {
			hub.Publish(fanout.Event{Type: fanout.TypeTaskDone, JobID: int64(i)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	hub.Unsubscribe(sub)
	var got []int64
	for evt := range sub.Events() {
		got = append(got, evt.JobID)
	}
	if len(got) != capacity {
		t.Fatalf("expected %d buffered events, got %d", capacity, len(got))
	}
	for i, id := range got {
		if id != int64(i+1) {
			t.Fatalf("expected oldest events to be kept, got %v", got)
		}
	}
	if sub.Dropped() != published-capacity {
		t.Fatalf("expected %d dropped, got %d", published-capacity, sub.Dropped())
	}
	stats := hub.Stats()
	if stats.Published != published || stats.Dropped != published-capacity || stats.Delivered != capacity {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSlowSubscriberDoesNotAffectOthers(t *testing.T) {
	hub := fanout.NewHub(2, nil)
	slow := hub.Subscribe()
	fast := hub.Subscribe()
	defer hub.Unsubscribe(slow)
	defer hub.Unsubscribe(fast)

	received := 0
	for i := 0; i < 10; i++ {
		hub.Publish(fanout.Event{Type: fanout.TypeTaskFail, JobID: int64(i)})
		select {
		case <-fast.Events():
			received++
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber missed event %d", i)
		}
	}
	if received != 10 {
		t.Fatalf("fast subscriber received %d", received)
	}
	if slow.Dropped() != 8 {
		t.Fatalf("slow subscriber dropped %d, want 8", slow.Dropped())
	}
}

func TestUnsubscribeIsIdempotentAndStopsDelivery(t *testing.T) {
	hub := fanout.NewHub(0, nil)
	if hub.BufferSize() != fanout.DefaultBufferSize {
		t.Fatalf("expected default buffer, got %d", hub.BufferSize())
	}
	sub := hub.Subscribe()
	if sub.ID == "" {
		t.Fatal("expected subscription id")
	}
	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)

	if n := hub.Publish(fanout.Event{Type: fanout.TypeTaskDone}); n != 0 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", n)
	}
	if hub.Stats().Subscribers != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.Stats().Subscribers)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel")
	}
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	hub := fanout.NewHub(8, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		sub := hub.Subscribe()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Publish(fanout.Event{Type: fanout.TypeTaskDone, JobID: int64(j)})
			}
		}()
		go func() {
			defer wg.Done()
			hub.Unsubscribe(sub)
		}()
	}
	wg.Wait()
	if hub.Stats().Subscribers != 0 {
		t.Fatalf("expected all subscribers removed, got %d", hub.Stats().Subscribers)
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	hub := fanout.NewHub(1, nil)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)
	hub.Publish(fanout.Event{Type: fanout.TypeTaskDone, SubjectID: 100})
	evt := <-sub.Events()
	if evt.TS.IsZero() || evt.SubjectID != 100 {
		t.Fatalf("unexpected event %+v", evt)
	}
}

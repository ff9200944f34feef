package fanout

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pressroom/internal/logging"
)

// Stats summarises hub activity since creation.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
}

// Subscription is one registered consumer.
type Subscription struct {
	ID string

	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped atomic.Uint64
}

// Events returns the receive side of the subscriber buffer. It is closed
// after Unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events this subscriber missed.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

type offerResult int

const (
	offerDelivered offerResult = iota
	offerFull
	// offerClosed means the subscriber left between snapshot and send.
	offerClosed
)

func (s *Subscription) offer(evt Event) offerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return offerClosed
	}
	select {
	case s.ch <- evt:
		return offerDelivered
	default:
		s.dropped.Add(1)
		return offerFull
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub holds the active subscriber set.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	buffer int
	logger *slog.Logger

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a hub whose subscribers buffer up to bufferSize events.
func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: bufferSize,
		logger: logging.NewComponentLogger(logger, "fanout"),
	}
}

// BufferSize returns the per-subscriber capacity.
func (h *Hub) BufferSize() int {
	return h.buffer
}

// Subscribe registers a new consumer.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		ID: uuid.NewString(),
		ch: make(chan Event, h.buffer),
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	count := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug("subscriber added", logging.String("subscriber_id", sub.ID), logging.Int("subscribers", count))
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it more than once
// is harmless.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subs[sub.ID]
	delete(h.subs, sub.ID)
	h.mu.Unlock()
	sub.close()
	if ok {
		h.logger.Debug("subscriber removed",
			logging.String("subscriber_id", sub.ID),
			logging.Int64("dropped", int64(sub.Dropped())),
		)
	}
}

// Publish offers evt to every current subscriber without blocking and
// returns how many accepted it.
func (h *Hub) Publish(evt Event) int {
	if h == nil {
		return 0
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	h.published.Add(1)
	delivered := 0
	for _, sub := range targets {
		switch sub.offer(evt) {
		case offerDelivered:
			delivered++
		case offerFull:
			h.dropped.Add(1)
		}
	}
	h.delivered.Add(uint64(delivered))
	return delivered
}

// Stats returns a point-in-time summary.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	count := len(h.subs)
	h.mu.Unlock()
	return Stats{
		Subscribers: count,
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
	}
}

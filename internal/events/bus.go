// Package events is an in-process named-event bus for optional integrations.
//
// Handlers for one event name run in registration order. Each handler is
// isolated: a returned error or a panic is logged and the remaining handlers
// still run. Emit never reports handler failures to its caller.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
)

// Event names emitted by the worker pool.
const (
	JobCompletedEvent = "job_completed"
	JobFailedEvent    = "job_failed"
)

// JobCompleted is the payload of job_completed.
type JobCompleted struct {
	JobID     int64
	SubjectID int64
	ResultRef string
	Context   *pipeline.Context
}

// JobFailed is the payload of job_failed.
type JobFailed struct {
	JobID     int64
	SubjectID int64
	Error     string
	Context   *pipeline.Context
}

// Handler observes one emitted event.
type Handler func(ctx context.Context, payload any) error

type entry struct {
	name    string
	handler Handler
}

// Bus holds handlers keyed by event name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	logger   *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]entry),
		logger:   logging.NewComponentLogger(logger, "event-bus"),
	}
}

// Register adds handler for event. label names the handler in logs.
func (b *Bus) Register(event, label string, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], entry{name: label, handler: handler})
}

// Handlers reports how many handlers are registered for event.
func (b *Bus) Handlers(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}

// Emit calls every handler registered for event, in registration order.
func (b *Bus) Emit(ctx context.Context, event string, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	entries := append([]entry(nil), b.handlers[event]...)
	b.mu.RUnlock()

	for _, e := range entries {
		if err := b.call(ctx, e, payload); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, b.logger), "event handler failed", "event_handler_failed",
				logging.String("event", event),
				logging.String("handler", e.name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "optional integration skipped for this job"),
			)
		}
	}
}

func (b *Bus) call(ctx context.Context, e entry, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.handler(ctx, payload)
}

package fanout

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"pressroom/internal/logging"
)

// DefaultHeartbeat is the idle interval before a heartbeat frame is written.
const DefaultHeartbeat = 30 * time.Second

// StreamHandler serves hub events as newline-delimited JSON until the client
// disconnects. Authentication is left to the surrounding router.
type StreamHandler struct {
	hub       *Hub
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewStreamHandler creates a handler bound to hub.
func NewStreamHandler(hub *Hub, heartbeat time.Duration, logger *slog.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &StreamHandler{
		hub:       hub,
		heartbeat: heartbeat,
		logger:    logging.NewComponentLogger(logger, "event-stream"),
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	if err := rc.Flush(); err != nil {
		h.logger.Debug("event stream flush unsupported", logging.Error(err))
		return
	}

	enc := json.NewEncoder(w)
	timer := time.NewTimer(h.heartbeat)
	defer timer.Stop()

	for {
		var evt Event
		select {
		case <-r.Context().Done():
			return
		case next, ok := <-sub.Events():
			if !ok {
				return
			}
			evt = next
		case <-timer.C:
			evt = Event{Type: TypeHeartbeat}
		}
		if err := enc.Encode(evt); err != nil {
			h.logger.Debug("event stream write failed", logging.String("subscriber_id", sub.ID), logging.Error(err))
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
		timer.Reset(h.heartbeat)
	}
}

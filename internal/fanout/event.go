// Package fanout pushes job outcome events to live subscribers.
//
// Delivery is best effort. Every subscriber owns a bounded buffer; when a
// buffer is full the event is dropped for that subscriber only and counted.
// Publishers never block on a slow consumer.
package fanout

import "time"

// Event types published by the worker pool and the stream handler.
const (
	TypeTaskDone  = "task_done"
	TypeTaskFail  = "task_fail"
	TypeHeartbeat = "heartbeat"
)

// DefaultBufferSize is the per-subscriber capacity when none is configured.
const DefaultBufferSize = 50

// Event is one outcome notification.
type Event struct {
	Type        string    `json:"type"`
	SubjectID   int64     `json:"subject_id,omitempty"`
	JobID       int64     `json:"job_id,omitempty"`
	Action      string    `json:"action,omitempty"`
	ResultRef   string    `json:"result_ref,omitempty"`
	Error       string    `json:"error,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	TS          time.Time `json:"ts,omitzero"`
}

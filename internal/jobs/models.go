package jobs

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// State is the lifecycle position of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Action is the outcome a completed pipeline run settled on.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// MaxErrorLength bounds the persisted error message, counted in runes.
const MaxErrorLength = 200

// DaemonStopReason is recorded on jobs that were still running when the daemon stopped.
const DaemonStopReason = "daemon stopped before the job finished"

// HeartbeatExpiredReason is recorded on running jobs reclaimed after their heartbeat lapsed.
const HeartbeatExpiredReason = "heartbeat expired"

var allStates = []State{StateWaiting, StatePending, StateRunning, StateCompleted, StateFailed}

var activeStates = []State{StateWaiting, StatePending, StateRunning}

type edge struct {
	from State
	to   State
}

var legalEdges = map[edge]struct{}{
	{StateWaiting, StatePending}:   {},
	{StatePending, StateRunning}:   {},
	{StateRunning, StateCompleted}: {},
	{StateRunning, StateFailed}:    {},
	{StateFailed, StatePending}:    {},
}

// CanTransition reports whether from -> to is an edge of the job state graph.
func CanTransition(from, to State) bool {
	_, ok := legalEdges[edge{from, to}]
	return ok
}

// AllStates lists every state in lifecycle order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState validates a state name.
func ParseState(value string) (State, bool) {
	for _, s := range allStates {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// IsActive reports whether the state occupies the subject's admission slot.
func (s State) IsActive() bool {
	for _, a := range activeStates {
		if s == a {
			return true
		}
	}
	return false
}

// Job is one persisted unit of work.
type Job struct {
	ID            int64
	SubjectID     int64
	State         State
	OutcomeAction Action
	ResultRef     string
	Error         string
	Options       json.RawMessage
	Derived       json.RawMessage
	Fingerprint   string
	DisplayName   string
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Publication is a ledger entry for a post a completed job produced or reused.
type Publication struct {
	ID          int64
	JobID       int64
	SubjectID   int64
	Fingerprint string
	ResultRef   string
	Action      Action
	PublishedAt time.Time
}

// CreateRequest describes a job admission.
type CreateRequest struct {
	SubjectID   int64
	Options     json.RawMessage
	AutoConfirm bool
	DisplayName string
}

// ListFilter selects a page of jobs. A zero Limit means no limit.
type ListFilter struct {
	States []State
	Limit  int
	Offset int
}

// DayCount summarises one UTC calendar day of activity.
type DayCount struct {
	Day       string
	Created   int
	Completed int
	Failed    int
	Published int
}

// Result carries the fields written alongside a terminal transition.
type Result struct {
	Action      Action
	ResultRef   string
	Fingerprint string
	Derived     json.RawMessage
	Error       string
}

// Outcome labels for bulk operator actions.
const (
	OutcomeUpdated      = "updated"
	OutcomeNotFound     = "not_found"
	OutcomeInvalidState = "invalid_state"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// BulkOutcome reports what happened to one id during a bulk action.
type BulkOutcome struct {
	ID      int64
	Outcome string
	State   State
	Detail  string
}

// BulkResult aggregates a bulk confirm or retry sweep.
type BulkResult struct {
	Updated int
	Items   []BulkOutcome
}

// HealthSummary counts jobs by lifecycle bucket.
type HealthSummary struct {
	Total     int
	Waiting   int
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// DatabaseHealth describes the on-disk job database for diagnostics.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   string
	Error            string
}

// TruncateError bounds an error message to MaxErrorLength runes.
func TruncateError(msg string) string {
	if utf8.RuneCountInString(msg) <= MaxErrorLength {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:MaxErrorLength])
}

package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a job in a transport-friendly format.
type Job struct {
	ID            int64           `json:"id"`
	SubjectID     int64           `json:"subjectId"`
	State         string          `json:"state"`
	Action        string          `json:"action,omitempty"`
	ResultRef     string          `json:"resultRef,omitempty"`
	Error         string          `json:"error,omitempty"`
	DisplayName   string          `json:"displayName,omitempty"`
	Fingerprint   string          `json:"fingerprint,omitempty"`
	Options       json.RawMessage `json:"options,omitempty"`
	Derived       json.RawMessage `json:"derived,omitempty"`
	LastHeartbeat string          `json:"lastHeartbeat,omitempty"`
	CreatedAt     string          `json:"createdAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
}

// EnqueueRequest admits one subject.
type EnqueueRequest struct {
	SubjectID   int64           `json:"subjectId"`
	Options     json.RawMessage `json:"options,omitempty"`
	AutoConfirm bool            `json:"autoConfirm"`
}

// BatchEnqueueRequest admits several subjects with shared options.
type BatchEnqueueRequest struct {
	SubjectIDs  []int64         `json:"subjectIds"`
	Options     json.RawMessage `json:"options,omitempty"`
	AutoConfirm bool            `json:"autoConfirm"`
}

// Batch enqueue outcomes.
const (
	EnqueueCreated  = "created"
	EnqueueConflict = "conflict"
	EnqueueInvalid  = "invalid"
	EnqueueError    = "error"
)

// BatchItem is the outcome for one subject of a batch enqueue.
type BatchItem struct {
	SubjectID int64  `json:"subjectId"`
	Outcome   string `json:"outcome"`
	JobID     int64  `json:"jobId,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// BatchResult aggregates a batch enqueue.
type BatchResult struct {
	Created int         `json:"created"`
	Items   []BatchItem `json:"items"`
}

// BulkRequest selects jobs for a confirm or retry sweep. All wins over IDs.
type BulkRequest struct {
	IDs []int64 `json:"ids,omitempty"`
	All bool    `json:"all,omitempty"`
}

// BulkItem is the outcome for one id of a sweep.
type BulkItem struct {
	ID      int64  `json:"id"`
	Outcome string `json:"outcome"`
	State   string `json:"state,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// BulkResult aggregates a sweep.
type BulkResult struct {
	Updated int        `json:"updated"`
	Items   []BulkItem `json:"items"`
}

// ListQuery selects one page of job history. A zero Limit asks for
// DefaultPageSize.
type ListQuery struct {
	States []string
	Limit  int
	Offset int
}

// JobListResponse wraps one page of jobs. Total counts every match.
type JobListResponse struct {
	Items  []Job `json:"items"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// DayCount is one day of the activity trend.
type DayCount struct {
	Day       string `json:"day"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Published int    `json:"published"`
}

// TrendResponse lists daily activity, oldest day first.
type TrendResponse struct {
	Days []DayCount `json:"days"`
}

// PreviewRequest asks for a dry run over one subject.
type PreviewRequest struct {
	SubjectID int64           `json:"subjectId"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// Preview is the content a job would publish, produced without touching the site.
type Preview struct {
	SubjectID        int64    `json:"subjectId"`
	Name             string   `json:"name"`
	CategoryID       int64    `json:"categoryId,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	SEOTitle         string   `json:"seoTitle,omitempty"`
	SEODescription   string   `json:"seoDescription,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	RewrittenContent string   `json:"rewrittenContent,omitempty"`
	Body             string   `json:"body"`
	Stages           []string `json:"stages"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// StatsResponse provides job counts keyed by state.
type StatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ClearResponse reports how many jobs a clear removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// WorkerStatus summarizes the worker pool.
type WorkerStatus struct {
	Running      bool    `json:"running"`
	Concurrency  int     `json:"concurrency"`
	InFlight     int     `json:"inFlight"`
	PeakInFlight int     `json:"peakInFlight"`
	InFlightIDs  []int64 `json:"inFlightIds,omitempty"`
	LastError    string  `json:"lastError,omitempty"`
	LastJob      *Job    `json:"lastJob,omitempty"`
}

// FanoutStatus mirrors the notification hub counters.
type FanoutStatus struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
}

// CheckResult reports one preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DBPath       string         `json:"dbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Workers      WorkerStatus   `json:"workers"`
	Counts       map[string]int `json:"counts"`
	Fanout       FanoutStatus   `json:"fanout"`
	Preflight    []CheckResult  `json:"preflight,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

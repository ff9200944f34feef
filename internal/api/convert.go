package api

import (
	"pressroom/internal/fanout"
	"pressroom/internal/jobs"
	"pressroom/internal/worker"
)

// FromJob converts a job record to its API representation.
func FromJob(job *jobs.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:          job.ID,
		SubjectID:   job.SubjectID,
		State:       string(job.State),
		Action:      string(job.OutcomeAction),
		ResultRef:   job.ResultRef,
		Error:       job.Error,
		DisplayName: job.DisplayName,
		Fingerprint: job.Fingerprint,
		Options:     job.Options,
		Derived:     job.Derived,
	}
	if job.LastHeartbeat != nil && !job.LastHeartbeat.IsZero() {
		dto.LastHeartbeat = job.LastHeartbeat.UTC().Format(dateTimeFormat)
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(items []*jobs.Job) []Job {
	out := make([]Job, 0, len(items))
	for _, item := range items {
		out = append(out, FromJob(item))
	}
	return out
}

// FromBulkResult converts a store sweep result.
func FromBulkResult(result jobs.BulkResult) BulkResult {
	out := BulkResult{Updated: result.Updated, Items: make([]BulkItem, 0, len(result.Items))}
	for _, item := range result.Items {
		out.Items = append(out.Items, BulkItem{
			ID:      item.ID,
			Outcome: item.Outcome,
			State:   string(item.State),
			Detail:  item.Detail,
		})
	}
	return out
}

// MergeStats produces a string-keyed representation of job stats with every
// state present.
func MergeStats(stats map[jobs.State]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, state := range jobs.AllStates() {
		out[string(state)] = stats[state]
	}
	return out
}

// FromWorkerStatus converts a pool snapshot.
func FromWorkerStatus(status worker.Status) WorkerStatus {
	dto := WorkerStatus{
		Running:      status.Running,
		Concurrency:  status.Concurrency,
		InFlight:     status.InFlight,
		PeakInFlight: status.PeakInFlight,
		InFlightIDs:  status.InFlightIDs,
		LastError:    status.LastError,
	}
	if status.LastJob != nil {
		last := FromJob(status.LastJob)
		dto.LastJob = &last
	}
	return dto
}

// FromFanoutStats converts hub counters.
func FromFanoutStats(stats fanout.Stats) FanoutStatus {
	return FanoutStatus{
		Subscribers: stats.Subscribers,
		Published:   stats.Published,
		Delivered:   stats.Delivered,
		Dropped:     stats.Dropped,
	}
}

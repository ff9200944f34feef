package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pressroom/internal/jobs"
	"pressroom/internal/pipeline"
	"pressroom/internal/services"
)

// ErrInvalidRequest marks a request rejected before reaching the store.
var ErrInvalidRequest = errors.New("invalid request")

// Paging and trend bounds.
const (
	DefaultPageSize  = 50
	MaxPageSize      = 500
	DefaultTrendDays = 7
	MaxTrendDays     = 90
)

// Clear scopes accepted by JobService.Clear.
const (
	ClearCompleted = "completed"
	ClearFailed    = "failed"
	ClearAll       = "all"
)

// JobService exposes job admission, operator actions and queries as DTOs.
type JobService struct {
	store *jobs.Store
	base  pipeline.Options
}

// NewJobService wraps store. base supplies option defaults for admissions.
func NewJobService(store *jobs.Store, base pipeline.Options) *JobService {
	return &JobService{store: store, base: base}
}

// Enqueue admits one subject. Options are validated and stored fully resolved.
func (s *JobService) Enqueue(ctx context.Context, req EnqueueRequest) (*Job, error) {
	if req.SubjectID <= 0 {
		return nil, fmt.Errorf("%w: subject id must be positive", ErrInvalidRequest)
	}
	snapshot, err := s.resolveOptions(req.Options)
	if err != nil {
		return nil, err
	}
	job, err := s.store.Create(ctx, jobs.CreateRequest{
		SubjectID:   req.SubjectID,
		Options:     snapshot,
		AutoConfirm: req.AutoConfirm,
	})
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// EnqueueBatch admits each subject independently. Invalid options reject the
// whole batch; per-subject failures are reported per item.
func (s *JobService) EnqueueBatch(ctx context.Context, req BatchEnqueueRequest) (BatchResult, error) {
	if len(req.SubjectIDs) == 0 {
		return BatchResult{}, fmt.Errorf("%w: no subject ids", ErrInvalidRequest)
	}
	snapshot, err := s.resolveOptions(req.Options)
	if err != nil {
		return BatchResult{}, err
	}
	result := BatchResult{Items: make([]BatchItem, 0, len(req.SubjectIDs))}
	for _, subjectID := range req.SubjectIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item := BatchItem{SubjectID: subjectID}
		if subjectID <= 0 {
			item.Outcome = EnqueueInvalid
			item.Detail = "subject id must be positive"
			result.Items = append(result.Items, item)
			continue
		}
		job, err := s.store.Create(ctx, jobs.CreateRequest{
			SubjectID:   subjectID,
			Options:     snapshot,
			AutoConfirm: req.AutoConfirm,
		})
		switch {
		case err == nil:
			item.Outcome = EnqueueCreated
			item.JobID = job.ID
			result.Created++
		case errors.Is(err, jobs.ErrConflict):
			item.Outcome = EnqueueConflict
			item.Detail = err.Error()
		default:
			item.Outcome = EnqueueError
			item.Detail = err.Error()
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func (s *JobService) resolveOptions(raw json.RawMessage) (json.RawMessage, error) {
	opts, err := pipeline.ParseOptionsOver(s.base, raw)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, err
	}
	return opts.Snapshot()
}

// Confirm moves a waiting job to pending.
func (s *JobService) Confirm(ctx context.Context, id int64) (*Job, error) {
	job, err := s.store.Confirm(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// ConfirmMany confirms the selected jobs, or every waiting job when All is set.
func (s *JobService) ConfirmMany(ctx context.Context, req BulkRequest) (BulkResult, error) {
	var (
		result jobs.BulkResult
		err    error
	)
	switch {
	case req.All:
		result, err = s.store.ConfirmAllWaiting(ctx)
	case len(req.IDs) > 0:
		result, err = s.store.ConfirmMany(ctx, req.IDs...)
	default:
		return BulkResult{}, fmt.Errorf("%w: ids or all required", ErrInvalidRequest)
	}
	if err != nil {
		return BulkResult{}, err
	}
	return FromBulkResult(result), nil
}

// Retry moves a failed job back to pending.
func (s *JobService) Retry(ctx context.Context, id int64) (*Job, error) {
	job, err := s.store.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// RetryMany retries the selected jobs, or every failed job when All is set.
func (s *JobService) RetryMany(ctx context.Context, req BulkRequest) (BulkResult, error) {
	var (
		result jobs.BulkResult
		err    error
	)
	switch {
	case req.All:
		result, err = s.store.RetryAllFailed(ctx)
	case len(req.IDs) > 0:
		result, err = s.store.RetryMany(ctx, req.IDs...)
	default:
		return BulkResult{}, fmt.Errorf("%w: ids or all required", ErrInvalidRequest)
	}
	if err != nil {
		return BulkResult{}, err
	}
	return FromBulkResult(result), nil
}

// List returns one page of jobs filtered by state names. Unknown names and
// out-of-range paging are rejected.
func (s *JobService) List(ctx context.Context, q ListQuery) (JobListResponse, error) {
	filter := jobs.ListFilter{Limit: q.Limit, Offset: q.Offset}
	switch {
	case q.Limit < 0 || q.Offset < 0:
		return JobListResponse{}, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidRequest)
	case q.Limit > MaxPageSize:
		return JobListResponse{}, fmt.Errorf("%w: limit above %d", ErrInvalidRequest, MaxPageSize)
	case q.Limit == 0:
		filter.Limit = DefaultPageSize
	}
	for _, name := range q.States {
		state, ok := jobs.ParseState(name)
		if !ok {
			return JobListResponse{}, fmt.Errorf("%w: unknown state %q", ErrInvalidRequest, name)
		}
		filter.States = append(filter.States, state)
	}
	items, total, err := s.store.ListPage(ctx, filter)
	if err != nil {
		return JobListResponse{}, err
	}
	return JobListResponse{Items: FromJobs(items), Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Trend returns per-day activity for the last days days, today included.
// Zero asks for DefaultTrendDays.
func (s *JobService) Trend(ctx context.Context, days int) (TrendResponse, error) {
	if days == 0 {
		days = DefaultTrendDays
	}
	if days < 1 || days > MaxTrendDays {
		return TrendResponse{}, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidRequest, MaxTrendDays)
	}
	counts, err := s.store.DailyCounts(ctx, days, time.Now())
	if err != nil {
		return TrendResponse{}, err
	}
	out := TrendResponse{Days: make([]DayCount, 0, len(counts))}
	for _, c := range counts {
		out.Days = append(out.Days, DayCount{Day: c.Day, Created: c.Created, Completed: c.Completed, Failed: c.Failed, Published: c.Published})
	}
	return out, nil
}

// Describe fetches a single job; a missing id yields jobs.ErrNotFound.
func (s *JobService) Describe(ctx context.Context, id int64) (*Job, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %d", jobs.ErrNotFound, id)
	}
	dto := FromJob(job)
	return &dto, nil
}

// Stats returns job counts keyed by state.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStats(stats), nil
}

// Clear removes completed, failed, or all non-running jobs.
func (s *JobService) Clear(ctx context.Context, scope string) (int64, error) {
	switch scope {
	case ClearCompleted:
		return s.store.ClearCompleted(ctx)
	case ClearFailed:
		return s.store.ClearFailed(ctx)
	case ClearAll, "":
		return s.store.Clear(ctx)
	default:
		return 0, fmt.Errorf("%w: unknown clear scope %q", ErrInvalidRequest, scope)
	}
}

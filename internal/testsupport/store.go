package testsupport

import (
	"context"
	"testing"

	"pressroom/internal/config"
	"pressroom/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustCreateJob admits a job for subjectID, optionally auto-confirmed.
func MustCreateJob(t testing.TB, store *jobs.Store, subjectID int64, autoConfirm bool) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), jobs.CreateRequest{SubjectID: subjectID, AutoConfirm: autoConfirm})
	if err != nil {
		t.Fatalf("Create(%d): %v", subjectID, err)
	}
	return job
}

// MustReachState moves a freshly created job along legal edges until it sits in target.
func MustReachState(t testing.TB, store *jobs.Store, job *jobs.Job, target jobs.State) *jobs.Job {
	t.Helper()
	ctx := context.Background()

	path := map[jobs.State][]jobs.State{
		jobs.StateWaiting:   {},
		jobs.StatePending:   {jobs.StatePending},
		jobs.StateRunning:   {jobs.StatePending, jobs.StateRunning},
		jobs.StateCompleted: {jobs.StatePending, jobs.StateRunning, jobs.StateCompleted},
		jobs.StateFailed:    {jobs.StatePending, jobs.StateRunning, jobs.StateFailed},
	}
	current := job.State
	for _, next := range path[target] {
		if current == next {
			continue
		}
		var result *jobs.Result
		switch next {
		case jobs.StateCompleted:
			result = &jobs.Result{Action: jobs.ActionCreate, ResultRef: "ref-test"}
		case jobs.StateFailed:
			result = &jobs.Result{Error: "forced failure"}
		}
		if err := store.Transition(ctx, job.ID, current, next, result); err != nil {
			t.Fatalf("Transition %s -> %s: %v", current, next, err)
		}
		current = next
	}
	updated, err := store.GetByID(ctx, job.ID)
	if err != nil || updated == nil {
		t.Fatalf("GetByID(%d): %v", job.ID, err)
	}
	return updated
}

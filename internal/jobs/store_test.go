package jobs_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pressroom/internal/jobs"
	"pressroom/internal/testsupport"
)

func TestCreateStartsWaitingOrPending(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	waiting, err := store.Create(ctx, jobs.CreateRequest{SubjectID: 10, Options: json.RawMessage(`{"post_status":"publish"}`)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if waiting.ID == 0 || waiting.State != jobs.StateWaiting {
		t.Fatalf("expected waiting job with id, got %+v", waiting)
	}
	if string(waiting.Options) != `{"post_status":"publish"}` {
		t.Fatalf("unexpected options snapshot %s", waiting.Options)
	}
	if waiting.CreatedAt.IsZero() || waiting.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	pending, err := store.Create(ctx, jobs.CreateRequest{SubjectID: 11, AutoConfirm: true, DisplayName: "Eleven"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if pending.State != jobs.StatePending || pending.DisplayName != "Eleven" {
		t.Fatalf("expected pending job, got %+v", pending)
	}
	if string(pending.Options) != `{}` {
		t.Fatalf("expected empty options object, got %s", pending.Options)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := store.Create(ctx, jobs.CreateRequest{SubjectID: 0}); err == nil {
		t.Fatal("expected error for zero subject id")
	}
	if _, err := store.Create(ctx, jobs.CreateRequest{SubjectID: 1, Options: json.RawMessage(`{nope`)}); err == nil {
		t.Fatal("expected error for invalid options JSON")
	}
}

func TestCreateRejectsSecondActiveJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first := testsupport.MustCreateJob(t, store, 200, false)
	if _, err := store.Create(ctx, jobs.CreateRequest{SubjectID: 200}); !errors.Is(err, jobs.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID != first.ID {
		t.Fatalf("expected exactly one job for subject 200, got %d", len(all))
	}

	// A finished job frees the subject for a new admission.
	testsupport.MustReachState(t, store, first, jobs.StateCompleted)
	if _, err := store.Create(ctx, jobs.CreateRequest{SubjectID: 200}); err != nil {
		t.Fatalf("expected admission after completion, got %v", err)
	}
}

func TestConcurrentAdmissionAdmitsOne(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		admitted  int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, jobs.CreateRequest{SubjectID: 42})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, jobs.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if admitted != 1 || conflicts != attempts-1 {
		t.Fatalf("expected 1 admission and %d conflicts, got %d and %d", attempts-1, admitted, conflicts)
	}
	count, err := store.CountActive(ctx, 42)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one active job, got %d", count)
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	job, err := store.GetByID(context.Background(), 999)
	if err != nil || job != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", job, err)
	}
}

func TestListPendingOrdersOldestFirst(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var ids []int64
	for subject := int64(1); subject <= 4; subject++ {
		ids = append(ids, testsupport.MustCreateJob(t, store, subject, true).ID)
	}
	testsupport.MustCreateJob(t, store, 5, false)

	pending, err := store.ListPending(ctx, 3)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending jobs, got %d", len(pending))
	}
	for i, job := range pending {
		if job.ID != ids[i] {
			t.Fatalf("position %d: expected job %d, got %d", i, ids[i], job.ID)
		}
	}
	if none, _ := store.ListPending(ctx, 0); len(none) != 0 {
		t.Fatalf("expected no jobs for zero limit, got %d", len(none))
	}

	waiting, err := store.List(ctx, jobs.StateWaiting)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(waiting) != 1 || waiting[0].SubjectID != 5 {
		t.Fatalf("expected subject 5 waiting, got %+v", waiting)
	}
}

func TestFindByFingerprintPrefersPublished(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	published := testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 7, true), jobs.StateRunning)
	if err := store.Complete(ctx, published.ID, jobs.Result{Action: jobs.ActionCreate, ResultRef: "post-7", Fingerprint: "abc"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	skipped := testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 7, true), jobs.StateRunning)
	if err := store.Complete(ctx, skipped.ID, jobs.Result{Action: jobs.ActionSkip, Fingerprint: "abc"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	match, err := store.FindByFingerprint(ctx, "abc")
	if err != nil {
		t.Fatalf("FindByFingerprint: %v", err)
	}
	if match == nil || match.JobID != published.ID || match.ResultRef != "post-7" || match.Action != jobs.ActionCreate {
		t.Fatalf("expected published job %d, got %+v", published.ID, match)
	}
	if none, err := store.FindByFingerprint(ctx, "missing"); err != nil || none != nil {
		t.Fatalf("expected no match, got %v %v", none, err)
	}

	latest, err := store.LatestPublished(ctx, 7)
	if err != nil {
		t.Fatalf("LatestPublished: %v", err)
	}
	if latest == nil || latest.JobID != published.ID {
		t.Fatalf("expected latest published %d, got %+v", published.ID, latest)
	}
	if none, err := store.LatestPublished(ctx, 8); err != nil || none != nil {
		t.Fatalf("expected no published job for subject 8, got %v %v", none, err)
	}
}

func TestHeartbeatAndReclaimStale(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 9, true), jobs.StateRunning)
	if job.LastHeartbeat == nil {
		t.Fatal("expected claim to stamp a heartbeat")
	}
	if err := store.UpdateHeartbeat(ctx, job.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}

	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("expected fresh heartbeat to survive, reclaimed %d", reclaimed)
	}

	reclaimed, err = store.ReclaimStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected stale job reclaimed, got %d", reclaimed)
	}
	updated, _ := store.GetByID(ctx, job.ID)
	if updated.State != jobs.StateFailed || updated.Error != jobs.HeartbeatExpiredReason {
		t.Fatalf("expected failed with heartbeat reason, got %+v", updated)
	}
}

func TestFailRunningOnStartup(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	running := testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 1, true), jobs.StateRunning)
	pending := testsupport.MustCreateJob(t, store, 2, true)

	count, err := store.FailRunning(ctx, jobs.DaemonStopReason)
	if err != nil {
		t.Fatalf("FailRunning: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one job failed, got %d", count)
	}
	if got, _ := store.GetByID(ctx, running.ID); got.State != jobs.StateFailed {
		t.Fatalf("expected running job failed, got %s", got.State)
	}
	if got, _ := store.GetByID(ctx, pending.ID); got.State != jobs.StatePending {
		t.Fatalf("expected pending job untouched, got %s", got.State)
	}
}

func TestStatsHealthAndClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.MustCreateJob(t, store, 1, false)
	testsupport.MustCreateJob(t, store, 2, true)
	testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 3, true), jobs.StateRunning)
	testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 4, true), jobs.StateCompleted)
	failed := testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 5, true), jobs.StateFailed)

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	want := jobs.HealthSummary{Total: 5, Waiting: 1, Pending: 1, Running: 1, Completed: 1, Failed: 1}
	if health != want {
		t.Fatalf("unexpected health %+v", health)
	}

	diag, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !diag.DatabaseExists || !diag.DatabaseReadable || !diag.TableExists {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}
	if len(diag.MissingColumns) != 0 || diag.IntegrityCheck != "ok" {
		t.Fatalf("unexpected schema diagnostics %+v", diag)
	}

	if removed, err := store.Remove(ctx, failed.ID); err != nil || !removed {
		t.Fatalf("Remove failed job: removed=%v err=%v", removed, err)
	}
	if n, err := store.ClearCompleted(ctx); err != nil || n != 1 {
		t.Fatalf("ClearCompleted: n=%d err=%v", n, err)
	}
	if n, err := store.Clear(ctx); err != nil || n != 2 {
		t.Fatalf("Clear: n=%d err=%v", n, err)
	}
	remaining, _ := store.List(ctx)
	if len(remaining) != 1 || remaining[0].State != jobs.StateRunning {
		t.Fatalf("expected only the running job to remain, got %+v", remaining)
	}
}

func TestFailTruncatesError(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job := testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 1, true), jobs.StateRunning)
	long := strings.Repeat("é", 500)
	if err := store.Fail(ctx, job.ID, long); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, _ := store.GetByID(ctx, job.ID)
	if n := len([]rune(got.Error)); n != jobs.MaxErrorLength {
		t.Fatalf("expected %d runes, got %d", jobs.MaxErrorLength, n)
	}
}

func TestSetDisplayName(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.MustCreateJob(t, store, 1, false)
	if err := store.SetDisplayName(ctx, job.ID, "  Portal 2 "); err != nil {
		t.Fatalf("SetDisplayName: %v", err)
	}
	got, _ := store.GetByID(ctx, job.ID)
	if got.DisplayName != "Portal 2" {
		t.Fatalf("unexpected display name %q", got.DisplayName)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.MustCreateJob(t, store, 1, false)
	_ = store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	all, err := reopened.List(context.Background())
	if err != nil || len(all) != 1 {
		t.Fatalf("expected persisted job after reopen, got %d (%v)", len(all), err)
	}
}

func TestSchemaVersionRecordedAndNewerRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if health.SchemaVersion != 2 {
		t.Fatalf("schema version = %d, want 2", health.SchemaVersion)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump user_version: %v", err)
	}
	_ = db.Close()

	if _, err := jobs.OpenPath(cfg.DatabasePath()); !errors.Is(err, jobs.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestListPageReportsTotal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var ids []int64
	for subject := int64(1); subject <= 5; subject++ {
		ids = append(ids, testsupport.MustCreateJob(t, store, subject, subject%2 == 0).ID)
	}

	page, total, err := store.ListPage(ctx, jobs.ListFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 5 || len(page) != 2 || page[0].ID != ids[3] || page[1].ID != ids[2] {
		t.Fatalf("unexpected page total=%d items=%+v", total, page)
	}

	tail, total, err := store.ListPage(ctx, jobs.ListFilter{Offset: 4})
	if err != nil || total != 5 || len(tail) != 1 || tail[0].ID != ids[0] {
		t.Fatalf("offset-only page: total=%d items=%+v err=%v", total, tail, err)
	}

	pending, total, err := store.ListPage(ctx, jobs.ListFilter{States: []jobs.State{jobs.StatePending}, Limit: 1})
	if err != nil || total != 2 || len(pending) != 1 || pending[0].ID != ids[3] {
		t.Fatalf("filtered page: total=%d items=%+v err=%v", total, pending, err)
	}

	empty, total, err := store.ListPage(ctx, jobs.ListFilter{Limit: 10, Offset: 50})
	if err != nil || total != 5 || len(empty) != 0 {
		t.Fatalf("past the end: total=%d items=%d err=%v", total, len(empty), err)
	}
}

func TestDailyCountsSurviveClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	published := testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 1, true), jobs.StateRunning)
	if err := store.Complete(ctx, published.ID, jobs.Result{Action: jobs.ActionCreate, ResultRef: "post-1"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	failed := testsupport.MustReachState(t, store, testsupport.MustCreateJob(t, store, 2, true), jobs.StateRunning)
	if err := store.Fail(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	testsupport.MustCreateJob(t, store, 3, false)

	sum := func(days []jobs.DayCount) jobs.DayCount {
		var total jobs.DayCount
		for _, d := range days {
			total.Created += d.Created
			total.Completed += d.Completed
			total.Failed += d.Failed
			total.Published += d.Published
		}
		return total
	}

	days, err := store.DailyCounts(ctx, 3, time.Now())
	if err != nil {
		t.Fatalf("DailyCounts: %v", err)
	}
	if len(days) != 3 || days[2].Day != time.Now().UTC().Format(time.DateOnly) {
		t.Fatalf("unexpected day window %+v", days)
	}
	if got := sum(days); got.Created != 3 || got.Completed != 1 || got.Failed != 1 || got.Published != 1 {
		t.Fatalf("unexpected totals %+v", got)
	}

	if _, err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	days, err = store.DailyCounts(ctx, 3, time.Now())
	if err != nil {
		t.Fatalf("DailyCounts after clear: %v", err)
	}
	if got := sum(days); got.Created != 0 || got.Published != 1 {
		t.Fatalf("expected only the ledger to remain after clear, got %+v", got)
	}

	old, err := store.DailyCounts(ctx, 2, time.Now().AddDate(0, 0, -10))
	if err != nil || sum(old) != (jobs.DayCount{}) {
		t.Fatalf("expected an empty window in the past, got %+v err=%v", old, err)
	}
}

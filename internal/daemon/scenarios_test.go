package daemon_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"pressroom/internal/api"
	"pressroom/internal/apiclient"
	"pressroom/internal/daemon"
	"pressroom/internal/fanout"
	"pressroom/internal/jobs"
	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
	"pressroom/internal/stages/dedupe"
	"pressroom/internal/testsupport"
	"pressroom/internal/worker"
)

type scenario struct {
	daemon *daemon.Daemon
	client *apiclient.Client
	hub    *fanout.Hub
}

// startScenario runs a full daemon whose pipeline is fetch, dedupe, publish.
func startScenario(t *testing.T, fetch *testsupport.StubStage) *scenario {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := fanout.NewHub(16, logging.NewNop())
	build := func(pipeline.Options) (*pipeline.Pipeline, error) {
		return pipeline.New(logging.NewNop()).
			Pipe(fetch).
			Pipe(dedupe.NewStage(store, logging.NewNop())).
			Pipe(testsupport.PublishStage()), nil
	}
	pool := worker.New(cfg, store, build, hub, nil, logging.NewNop())
	d, err := daemon.New(cfg, store, pool, hub, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &scenario{
		daemon: d,
		client: apiclient.New(apiclient.BaseURL(d.APIAddr()), cfg.Paths.APIToken),
		hub:    hub,
	}
}

func (s *scenario) waitForState(t *testing.T, id int64, want string) *api.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.client.Describe(context.Background(), id)
		if err != nil {
			t.Fatalf("Describe: %v", err)
		}
		if job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d did not reach %s", id, want)
	return nil
}

func TestScenarioConfirmedJobPublishes(t *testing.T) {
	s := startScenario(t, testsupport.FetchStage())
	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)
	ctx := context.Background()

	job, err := s.client.Enqueue(ctx, api.EnqueueRequest{SubjectID: 100})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.State != string(jobs.StateWaiting) {
		t.Fatalf("state = %s, want waiting", job.State)
	}
	if _, err := s.client.Confirm(ctx, job.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	done := s.waitForState(t, job.ID, string(jobs.StateCompleted))
	if done.Action != string(jobs.ActionCreate) || done.ResultRef != "post-100" {
		t.Fatalf("unexpected outcome %+v", done)
	}

	doneEvents := 0
	timeout := time.After(300 * time.Millisecond)
collect:
	for {
		select {
		case evt := <-sub.Events():
			if evt.Type == fanout.TypeTaskDone && evt.SubjectID == 100 {
				doneEvents++
			}
		case <-timeout:
			break collect
		}
	}
	if doneEvents != 1 {
		t.Fatalf("expected exactly one task_done for subject 100, got %d", doneEvents)
	}
}

func TestScenarioDuplicateAdmissionConflicts(t *testing.T) {
	s := startScenario(t, testsupport.FetchStage())
	ctx := context.Background()

	if _, err := s.client.Enqueue(ctx, api.EnqueueRequest{SubjectID: 200}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	_, err := s.client.Enqueue(ctx, api.EnqueueRequest{SubjectID: 200})
	if apiclient.StatusOf(err) != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate admission, got %v", err)
	}

	all, err := s.client.List(ctx, api.ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	count := 0
	for _, job := range all.Items {
		if job.SubjectID == 200 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one record for subject 200, got %d", count)
	}
}

func TestScenarioFailedJobRetries(t *testing.T) {
	var fixed atomic.Bool
	stub := testsupport.FetchStage()
	fetch := &testsupport.StubStage{
		StageName: "fetch",
		ApplyFn:   stub.ApplyFn,
		ExecFn: func(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			if !fixed.Load() {
				return nil, errors.New("catalog unavailable")
			}
			return stub.ExecFn(ctx, pc)
		},
	}
	s := startScenario(t, fetch)
	ctx := context.Background()

	job, err := s.client.Enqueue(ctx, api.EnqueueRequest{SubjectID: 300})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := s.client.Confirm(ctx, job.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	failed := s.waitForState(t, job.ID, string(jobs.StateFailed))
	if failed.Error == "" {
		t.Fatal("expected failure message")
	}

	fixed.Store(true)
	retried, err := s.client.Retry(ctx, job.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if retried.State != string(jobs.StatePending) {
		t.Fatalf("state after retry = %s, want pending", retried.State)
	}
	done := s.waitForState(t, job.ID, string(jobs.StateCompleted))
	if done.ResultRef != "post-300" || done.Error != "" {
		t.Fatalf("unexpected retry outcome %+v", done)
	}
}

func TestScenarioStopEndsAttachedWatchers(t *testing.T) {
	s := startScenario(t, testsupport.FetchStage())

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- s.client.Watch(context.Background(), func(fanout.Event) error { return nil })
	}()
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.Stats().Subscribers != 1 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	started := time.Now()
	s.daemon.Stop()
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("Stop took %s with a watcher attached", elapsed)
	}
	if n := s.hub.Stats().Subscribers; n != 0 {
		t.Fatalf("expected no subscribers after Stop, got %d", n)
	}
	select {
	case <-watchDone:
	case <-time.After(2 * time.Second):
		t.Fatal("watch still streaming after Stop returned")
	}
}

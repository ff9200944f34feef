package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"pressroom/internal/config"
	"pressroom/internal/daemon"
	"pressroom/internal/fanout"
	"pressroom/internal/jobs"
	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
	"pressroom/internal/testsupport"
	"pressroom/internal/worker"
)

const cliTestToken = "cli-token"

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobs.Store
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv starts a daemon with stub stages. seeds run against the
// store before the worker pool starts.
func setupCLITestEnv(t *testing.T, seeds ...func(*jobs.Store)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(cliTestToken))
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))

	store := testsupport.MustOpenStore(t, cfg)
	for _, seed := range seeds {
		seed(store)
	}
	hub := fanout.NewHub(16, logging.NewNop())
	build := func(pipeline.Options) (*pipeline.Pipeline, error) {
		return pipeline.New(logging.NewNop()).
			Pipe(testsupport.FetchStage()).
			Pipe(testsupport.PublishStage()), nil
	}
	preview := func(pipeline.Options) (*pipeline.Pipeline, error) {
		return pipeline.New(logging.NewNop()).
			Pipe(testsupport.FetchStage()).
			Pipe(&testsupport.StubStage{
				StageName: "content",
				ExecFn: func(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
					pc.Tags = []string{"indie", "puzzle"}
					pc.Body = "<p>" + pc.Subject.Name + "</p>"
					return pc, nil
				},
			}), nil
	}
	pool := worker.New(cfg, store, build, hub, nil, logging.NewNop())
	d, err := daemon.New(cfg, store, pool, hub, logging.NewNop(), daemon.WithPreview(preview))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})

	cfg.Paths.APIBind = d.APIAddr()
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, store: store, daemon: d, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (e *cliTestEnv) waitForState(t *testing.T, id int64, state jobs.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := e.store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && job.State == state {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %d never reached %s", id, state)
}

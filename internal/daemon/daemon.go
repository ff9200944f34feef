package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"pressroom/internal/api"
	"pressroom/internal/config"
	"pressroom/internal/fanout"
	"pressroom/internal/jobs"
	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
	"pressroom/internal/preflight"
	"pressroom/internal/worker"
)

// Daemon coordinates the worker pool and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *jobs.Store
	pool    *worker.Pool
	hub     *fanout.Hub
	jobs    *api.JobService
	preview *api.PreviewService
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool

	mu        sync.Mutex
	preflight []preflight.Result
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DBPath       string
	LockFilePath string
	Workers      worker.Status
	Counts       map[string]int
	Fanout       fanout.Stats
	Preflight    []preflight.Result
}

// Option adjusts a Daemon under construction.
type Option func(*options)

type options struct {
	preview api.PreviewBuilder
}

// WithPreview enables POST /api/preview over pipelines from build.
func WithPreview(build api.PreviewBuilder) Option {
	return func(o *options) { o.preview = build }
}

// New constructs a daemon around an opened store and a configured pool.
func New(cfg *config.Config, store *jobs.Store, pool *worker.Pool, hub *fanout.Hub, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || pool == nil {
		return nil, errors.New("daemon requires config, store, and worker pool")
	}
	base := pipeline.DefaultOptions()
	if cfg.Publisher.PostStatus != "" {
		base.PostStatus = cfg.Publisher.PostStatus
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pool:     pool,
		hub:      hub,
		jobs:     api.NewJobService(store, base),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.preview != nil {
		d.preview = api.NewPreviewService(o.preview, base)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, fails jobs left running by a previous
// process, then starts the worker pool and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pressroom daemon instance is already running")
	}

	recovered, err := d.store.FailRunning(ctx, jobs.DaemonStopReason)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover running jobs: %w", err)
	}
	if recovered > 0 {
		d.logger.Warn("jobs left running by a previous process marked failed",
			logging.Int64("count", recovered),
			logging.String(logging.FieldEventType, "startup_recovery"),
		)
	}

	checks := preflight.RunLocal(d.cfg)
	d.mu.Lock()
	d.preflight = checks
	d.mu.Unlock()
	for _, check := range checks {
		if !check.Passed {
			logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail),
			)
		}
	}

	if err := d.pool.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker pool: %w", err)
	}
	if err := d.api.start(ctx); err != nil {
		d.pool.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("pressroom daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	d.pool.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("pressroom daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the address the HTTP API listens on, or "" when disabled.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Jobs returns the job service used by the API.
func (d *Daemon) Jobs() *api.JobService {
	return d.jobs
}

// Preview returns the preview service, or nil when previews are disabled.
func (d *Daemon) Preview() *api.PreviewService {
	return d.preview
}

// Hub returns the live event hub, which may be nil.
func (d *Daemon) Hub() *fanout.Hub {
	return d.hub
}

// Wake nudges the worker pool after new work became pending.
func (d *Daemon) Wake() {
	d.pool.Wake()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		Workers:      d.pool.Status(),
	}
	if counts, err := d.jobs.Stats(ctx); err == nil {
		status.Counts = counts
	} else {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	if d.hub != nil {
		status.Fanout = d.hub.Stats()
	}
	d.mu.Lock()
	status.Preflight = append([]preflight.Result(nil), d.preflight...)
	d.mu.Unlock()
	return status
}

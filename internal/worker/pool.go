package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pressroom/internal/config"
	"pressroom/internal/events"
	"pressroom/internal/fanout"
	"pressroom/internal/jobs"
	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
)

// Builder assembles the pipeline for one job's options.
type Builder func(opts pipeline.Options) (*pipeline.Pipeline, error)

// Pool drives pending jobs to a terminal state.
type Pool struct {
	store  *jobs.Store
	build  Builder
	hub    *fanout.Hub
	bus    *events.Bus
	logger *slog.Logger

	concurrency       int
	pollInterval      time.Duration
	busyBackoff       time.Duration
	jobTimeout        time.Duration
	shutdownTimeout   time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	wake chan struct{}

	mu         sync.Mutex
	running    bool
	cancelLoop context.CancelFunc
	cancelJobs context.CancelFunc
	loopDone   chan struct{}
	inflight   map[int64]*execution
	peak       int
	lastErr    error
	lastJob    *jobs.Job
}

type execution struct {
	job     *jobs.Job
	started time.Time
	done    chan struct{}
}

// Status is a point-in-time view of the pool.
type Status struct {
	Running      bool
	Concurrency  int
	InFlight     int
	PeakInFlight int
	InFlightIDs  []int64
	LastError    string
	LastJob      *jobs.Job
}

// New constructs a pool. hub and bus may be nil.
func New(cfg *config.Config, store *jobs.Store, build Builder, hub *fanout.Hub, bus *events.Bus, logger *slog.Logger) *Pool {
	workers := cfg.Workers
	concurrency := workers.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		store:             store,
		build:             build,
		hub:               hub,
		bus:               bus,
		logger:            logging.NewComponentLogger(logger, "worker-pool"),
		concurrency:       concurrency,
		pollInterval:      workers.PollInterval(),
		busyBackoff:       workers.BusyBackoff(),
		jobTimeout:        workers.JobTimeoutDuration(),
		shutdownTimeout:   workers.ShutdownTimeoutDuration(),
		heartbeatInterval: workers.HeartbeatIntervalDuration(),
		heartbeatTimeout:  workers.HeartbeatTimeoutDuration(),
		wake:              make(chan struct{}, 1),
		inflight:          make(map[int64]*execution),
	}
}

// Start launches the coordinating loop.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("worker pool already running")
	}
	if p.build == nil {
		return errors.New("worker pool has no pipeline builder")
	}
	loopCtx, cancelLoop := context.WithCancel(ctx)
	// Executions outlive the loop so Stop can give them a grace period.
	jobsCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelLoop = cancelLoop
	p.cancelJobs = cancelJobs
	p.loopDone = make(chan struct{})
	p.running = true
	p.peak = 0

	go p.loop(loopCtx, jobsCtx)
	p.logger.Info("worker pool started",
		logging.Int("concurrency", p.concurrency),
		logging.Duration("poll_interval", p.pollInterval),
	)
	return nil
}

// Stop stops claiming, cancels in-flight executions, waits up to the
// shutdown timeout and marks anything still running as failed.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancelLoop, cancelJobs, loopDone := p.cancelLoop, p.cancelJobs, p.loopDone
	p.mu.Unlock()

	cancelLoop()
	<-loopDone
	cancelJobs()

	p.mu.Lock()
	pending := make([]*execution, 0, len(p.inflight))
	for _, ex := range p.inflight {
		pending = append(pending, ex)
	}
	p.mu.Unlock()

	deadline := time.NewTimer(p.shutdownTimeout)
	defer deadline.Stop()
	var stuck []int64
	expired := false
	for _, ex := range pending {
		if !expired {
			select {
			case <-ex.done:
				continue
			case <-deadline.C:
				expired = true
			}
		}
		select {
		case <-ex.done:
		default:
			stuck = append(stuck, ex.job.ID)
		}
	}

	ctx := context.Background()
	for _, id := range stuck {
		if err := p.store.Fail(ctx, id, jobs.DaemonStopReason); err != nil {
			if errors.Is(err, jobs.ErrPrecondition) {
				continue
			}
			p.logger.Warn("failed to mark job after shutdown timeout",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err),
			)
			continue
		}
		p.logger.Warn("job still running at shutdown deadline; marked failed",
			logging.Int64(logging.FieldJobID, id),
			logging.Alert("shutdown_forced"),
		)
	}

	p.mu.Lock()
	p.reapLocked()
	p.mu.Unlock()
	p.logger.Info("worker pool stopped", logging.Int("forced", len(stuck)))
}

// Wake interrupts an idle poll so newly pending work is claimed promptly.
func (p *Pool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Status reports the pool's state.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		Running:      p.running,
		Concurrency:  p.concurrency,
		PeakInFlight: p.peak,
	}
	for id, ex := range p.inflight {
		select {
		case <-ex.done:
			continue
		default:
		}
		st.InFlightIDs = append(st.InFlightIDs, id)
	}
	st.InFlight = len(st.InFlightIDs)
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	if p.lastJob != nil {
		job := *p.lastJob
		st.LastJob = &job
	}
	return st
}

func (p *Pool) setLastError(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func (p *Pool) setLastJob(job *jobs.Job) {
	if job == nil {
		return
	}
	copied := *job
	p.mu.Lock()
	p.lastJob = &copied
	p.mu.Unlock()
}

package worker

import (
	"context"
	"time"

	"pressroom/internal/jobs"
	"pressroom/internal/logging"
)

func (p *Pool) loop(ctx, jobsCtx context.Context) {
	defer close(p.loopDone)
	var lastReclaim time.Time

	for {
		if ctx.Err() != nil {
			return
		}

		if p.heartbeatTimeout > 0 && time.Since(lastReclaim) >= p.heartbeatInterval {
			p.reclaimStale(ctx)
			lastReclaim = time.Now()
		}

		p.mu.Lock()
		p.reapLocked()
		available := p.concurrency - len(p.inflight)
		p.mu.Unlock()

		if available <= 0 {
			if !p.sleep(ctx, p.busyBackoff, false) {
				return
			}
			continue
		}

		pending, err := p.store.ListPending(ctx, available)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.setLastError(err)
			logging.ErrorWithContext(p.logger, "failed to list pending jobs", "job_fetch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check job database access"),
			)
			if !p.sleep(ctx, p.pollInterval, true) {
				return
			}
			continue
		}
		if len(pending) == 0 {
			if !p.sleep(ctx, p.pollInterval, true) {
				return
			}
			continue
		}

		for _, job := range pending {
			if ctx.Err() != nil {
				return
			}
			claimed, err := p.store.Claim(ctx, job.ID)
			if err != nil {
				p.setLastError(err)
				p.logger.Warn("claim failed",
					logging.Int64(logging.FieldJobID, job.ID),
					logging.Error(err),
					logging.String(logging.FieldEventType, "job_claim_failed"),
				)
				continue
			}
			if !claimed {
				p.logger.Debug("claim lost", logging.Int64(logging.FieldJobID, job.ID))
				continue
			}
			job.State = jobs.StateRunning
			p.launch(jobsCtx, job)
		}
	}
}

// reapLocked drops finished executions from the in-flight table.
func (p *Pool) reapLocked() {
	for id, ex := range p.inflight {
		select {
		case <-ex.done:
			delete(p.inflight, id)
		default:
		}
	}
}

func (p *Pool) launch(ctx context.Context, job *jobs.Job) {
	ex := &execution{job: job, started: time.Now(), done: make(chan struct{})}
	p.mu.Lock()
	p.inflight[job.ID] = ex
	if n := len(p.inflight); n > p.peak {
		p.peak = n
	}
	p.mu.Unlock()

	go p.execute(ctx, ex)
}

// sleep waits for d, returning false when ctx ends first. Idle sleeps also
// return early on Wake.
func (p *Pool) sleep(ctx context.Context, d time.Duration, wakeable bool) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	var wake <-chan struct{}
	if wakeable {
		wake = p.wake
	}
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-wake:
	}
	return true
}

func (p *Pool) reclaimStale(ctx context.Context) {
	cutoff := time.Now().Add(-p.heartbeatTimeout)
	reclaimed, err := p.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check job database access"),
			)
		}
		return
	}
	if reclaimed > 0 {
		p.logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
	}
}

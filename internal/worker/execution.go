package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pressroom/internal/events"
	"pressroom/internal/fanout"
	"pressroom/internal/jobs"
	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
	"pressroom/internal/services"
	"pressroom/internal/textutil"
)

func (p *Pool) execute(parent context.Context, ex *execution) {
	defer close(ex.done)
	job := ex.job

	ctx := services.WithJobID(parent, job.ID)
	ctx = services.WithSubjectID(ctx, job.SubjectID)
	logger := logging.WithContext(ctx, p.logger)

	jobCtx, cancel := context.WithCancel(ctx)
	if p.jobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, p.jobTimeout)
	}
	defer cancel()

	var hb sync.WaitGroup
	hbCtx, stopHeartbeat := context.WithCancel(jobCtx)
	if p.heartbeatInterval > 0 {
		hb.Add(1)
		go p.heartbeatLoop(hbCtx, &hb, job.ID, logger)
	}

	logger.Info("job started")
	pc := p.run(jobCtx, job, logger)
	stopHeartbeat()
	hb.Wait()

	if pc.Failed() {
		switch {
		case parent.Err() != nil:
			pc.Error = fmt.Sprintf("%s (%s)", jobs.DaemonStopReason, pc.Error)
		case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
			pc.Error = fmt.Sprintf("job timed out after %s: %s", p.jobTimeout, pc.Error)
		}
	}

	final := context.WithoutCancel(ctx)
	if pc.Failed() {
		p.finishFailed(final, job, pc, logger, time.Since(ex.started))
		return
	}
	p.finishCompleted(final, job, pc, logger, time.Since(ex.started))
}

// run builds and drives the pipeline. Any failure before or during the run
// is reported through the returned context's Error.
func (p *Pool) run(ctx context.Context, job *jobs.Job, logger *slog.Logger) (pc *pipeline.Context) {
	opts, err := pipeline.ParseOptions(job.Options)
	pc = pipeline.NewContext(job.ID, job.SubjectID, opts)
	if err != nil {
		pc.Error = fmt.Sprintf("options: %v", err)
		pc.Action = pipeline.ActionSkip
		return pc
	}

	defer func() {
		if r := recover(); r != nil {
			pc.Error = fmt.Sprintf("panic: %v", r)
			pc.Action = pipeline.ActionSkip
			logging.ErrorWithContext(logger, "job execution panicked", "job_panic", logging.Alert("panic"))
		}
	}()

	pl, err := p.build(opts)
	if err != nil {
		pc.Error = fmt.Sprintf("build pipeline: %v", err)
		pc.Action = pipeline.ActionSkip
		return pc
	}
	return pl.Run(ctx, pc)
}

func (p *Pool) finishCompleted(ctx context.Context, job *jobs.Job, pc *pipeline.Context, logger *slog.Logger, elapsed time.Duration) {
	derived, err := pc.DerivedJSON()
	if err != nil {
		logger.Warn("could not encode derived data", logging.Error(err))
		derived = nil
	}
	result := jobs.Result{
		Action:      jobs.Action(pc.Action),
		ResultRef:   pc.ResultRef,
		Fingerprint: pc.Fingerprint,
		Derived:     derived,
	}
	if err := p.store.Complete(ctx, job.ID, result); err != nil {
		p.setLastError(err)
		logging.ErrorWithContext(logger, "failed to persist job completion", "job_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "job may have been reclaimed or force-failed"),
		)
		return
	}

	name := textutil.DisplayName(pc.DisplayName())
	if name != "" {
		if err := p.store.SetDisplayName(ctx, job.ID, name); err != nil {
			logger.Warn("failed to record display name", logging.Error(err))
		}
	}

	job.State = jobs.StateCompleted
	job.OutcomeAction = result.Action
	job.ResultRef = result.ResultRef
	job.Fingerprint = result.Fingerprint
	if name != "" {
		job.DisplayName = name
	}
	p.setLastJob(job)

	logger.Info("job completed",
		logging.String("action", string(pc.Action)),
		logging.String("result_ref", pc.ResultRef),
		logging.Duration("elapsed", elapsed),
	)

	if p.hub != nil {
		p.hub.Publish(fanout.Event{
			Type:        fanout.TypeTaskDone,
			SubjectID:   job.SubjectID,
			JobID:       job.ID,
			Action:      string(pc.Action),
			ResultRef:   pc.ResultRef,
			DisplayName: name,
		})
	}
	p.bus.Emit(ctx, events.JobCompletedEvent, events.JobCompleted{
		JobID:     job.ID,
		SubjectID: job.SubjectID,
		ResultRef: pc.ResultRef,
		Context:   pc,
	})
}

func (p *Pool) finishFailed(ctx context.Context, job *jobs.Job, pc *pipeline.Context, logger *slog.Logger, elapsed time.Duration) {
	message := jobs.TruncateError(pc.Error)
	if err := p.store.Fail(ctx, job.ID, message); err != nil {
		p.setLastError(err)
		logging.ErrorWithContext(logger, "failed to persist job failure", "job_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "job may have been reclaimed or force-failed"),
		)
		return
	}
	p.setLastError(errors.New(message))

	name := textutil.DisplayName(pc.DisplayName())
	if name != "" {
		_ = p.store.SetDisplayName(ctx, job.ID, name)
	}
	job.State = jobs.StateFailed
	job.Error = message
	if name != "" {
		job.DisplayName = name
	}
	p.setLastJob(job)

	logging.WarnWithContext(logger, "job failed", "job_failed",
		logging.String("error_message", message),
		logging.Duration("elapsed", elapsed),
		logging.Alert("job_failed"),
		logging.String(logging.FieldErrorHint, "inspect the error and retry the job"),
		logging.String(logging.FieldImpact, "subject was not published"),
	)

	if p.hub != nil {
		p.hub.Publish(fanout.Event{
			Type:        fanout.TypeTaskFail,
			SubjectID:   job.SubjectID,
			JobID:       job.ID,
			Error:       message,
			DisplayName: name,
		})
	}
	p.bus.Emit(ctx, events.JobFailedEvent, events.JobFailed{
		JobID:     job.ID,
		SubjectID: job.SubjectID,
		Error:     message,
		Context:   pc,
	})
}

func (p *Pool) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64, logger *slog.Logger) {
	defer wg.Done()
	ticker := time.NewTicker(p.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pressroom/internal/logging"
	"pressroom/internal/services"
)

// Stage is one pluggable unit of pipeline work.
//
// Applies must be a pure predicate over the context. Execute performs the
// stage's external work and returns the updated context, or an error.
type Stage interface {
	Name() string
	Applies(pc *Context) bool
	Execute(ctx context.Context, pc *Context) (*Context, error)
}

// Pipeline is an ordered, immutable-once-running list of stages.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New creates an empty pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{logger: logging.NewComponentLogger(logger, "pipeline")}
}

// Pipe appends a stage and returns the pipeline for chaining.
func (p *Pipeline) Pipe(stage Stage) *Pipeline {
	if stage != nil {
		p.stages = append(p.stages, stage)
	}
	return p
}

// Len reports how many stages are registered.
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Names lists stage names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run drives pc through every applicable stage. The returned context carries
// the terminal outcome; a failed stage leaves Error set and Action skip, with
// every other field as the previous stages left it.
func (p *Pipeline) Run(ctx context.Context, pc *Context) *Context {
	if pc.Action == "" {
		pc.Action = ActionCreate
	}
	ctx = services.WithSubjectID(ctx, pc.SubjectID)
	if pc.JobID != 0 {
		ctx = services.WithJobID(ctx, pc.JobID)
	}
	logger := logging.WithContext(ctx, p.logger)

	for _, stage := range p.stages {
		name := stage.Name()
		if !stage.Applies(pc) {
			logger.Debug("stage not applicable", logging.String(logging.FieldStage, name))
			continue
		}
		if err := ctx.Err(); err != nil {
			pc.Error = fmt.Sprintf("%s: %v", name, err)
			pc.Action = ActionSkip
			logger.Info("pipeline cancelled", logging.String(logging.FieldStage, name), logging.Error(err))
			return pc
		}

		stageCtx := services.WithStage(ctx, name)
		snapshot := pc.Clone()
		started := time.Now()
		logger.Info("stage started", logging.String(logging.FieldStage, name))

		out, err := runStage(stageCtx, stage, pc)
		if err != nil {
			pc = snapshot
			pc.Error = fmt.Sprintf("%s: %v", name, err)
			pc.Action = ActionSkip
			logging.ErrorWithContext(logger, "stage failed", "stage_failed",
				logging.String(logging.FieldStage, name),
				logging.String("error_kind", services.Kind(err)),
				logging.Bool("retryable", services.Retryable(err)),
				logging.String(logging.FieldErrorHint, failureHint(err)),
				logging.Error(err),
			)
			return pc
		}
		if out != nil {
			pc = out
		}
		logger.Info("stage completed",
			logging.String(logging.FieldStage, name),
			logging.Duration("elapsed", time.Since(started)),
		)

		if pc.Action == ActionSkip {
			logger.Info("pipeline stopped early",
				logging.String(logging.FieldStage, name),
				logging.String("action", string(pc.Action)),
				logging.String("result_ref", pc.ResultRef),
			)
			return pc
		}
	}
	return pc
}

func runStage(ctx context.Context, stage Stage, pc *Context) (out *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stage.Execute(ctx, pc)
}

func failureHint(err error) string {
	if services.Retryable(err) {
		return "retry the job once the service recovers"
	}
	return "fix the input or configuration, then retry the job"
}

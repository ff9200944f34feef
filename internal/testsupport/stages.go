package testsupport

import (
	"context"
	"fmt"
	"sync/atomic"

	"pressroom/internal/pipeline"
)

// StubStage is a configurable pipeline.Stage that counts executions.
type StubStage struct {
	StageName string
	ApplyFn   func(*pipeline.Context) bool
	ExecFn    func(context.Context, *pipeline.Context) (*pipeline.Context, error)

	calls atomic.Int64
}

func (s *StubStage) Name() string { return s.StageName }

func (s *StubStage) Applies(pc *pipeline.Context) bool {
	if s.ApplyFn == nil {
		return true
	}
	return s.ApplyFn(pc)
}

func (s *StubStage) Execute(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	s.calls.Add(1)
	if s.ExecFn == nil {
		return pc, nil
	}
	return s.ExecFn(ctx, pc)
}

// Calls reports how many times Execute ran.
func (s *StubStage) Calls() int {
	return int(s.calls.Load())
}

// FetchStage fills Subject with a deterministic record for the subject id.
func FetchStage() *StubStage {
	return &StubStage{
		StageName: "fetch",
		ApplyFn:   func(pc *pipeline.Context) bool { return pc.Subject == nil },
		ExecFn: func(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.Subject = &pipeline.Subject{
				AppID:            pc.SubjectID,
				Name:             fmt.Sprintf("Subject %d", pc.SubjectID),
				ShortDescription: "stub description",
				PriceFinal:       999,
			}
			return pc, nil
		},
	}
}

// PublishStage records a result reference derived from the subject id.
func PublishStage() *StubStage {
	return &StubStage{
		StageName: "publish",
		ApplyFn:   func(pc *pipeline.Context) bool { return pc.Subject != nil },
		ExecFn: func(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.ResultRef = fmt.Sprintf("post-%d", pc.SubjectID)
			return pc, nil
		},
	}
}

// FailStage always fails with err.
func FailStage(name string, err error) *StubStage {
	return &StubStage{
		StageName: name,
		ExecFn: func(context.Context, *pipeline.Context) (*pipeline.Context, error) {
			return nil, err
		},
	}
}

// BlockingStage waits until release is closed or the context is cancelled.
func BlockingStage(name string, release <-chan struct{}) *StubStage {
	return &StubStage{
		StageName: name,
		ExecFn: func(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			select {
			case <-release:
				return pc, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

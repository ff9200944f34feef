package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pressroom/internal/pipeline"
)

// ErrPreviewFailed marks a preview whose pipeline stopped on a stage error.
var ErrPreviewFailed = errors.New("preview failed")

// PreviewTimeout bounds one preview run, model calls included.
const PreviewTimeout = 3 * time.Minute

// PreviewBuilder assembles a pipeline that never writes to the site.
type PreviewBuilder func(pipeline.Options) (*pipeline.Pipeline, error)

// PreviewService renders what a job would publish without recording a job.
type PreviewService struct {
	build PreviewBuilder
	base  pipeline.Options
}

// NewPreviewService wraps build. base supplies option defaults.
func NewPreviewService(build PreviewBuilder, base pipeline.Options) *PreviewService {
	return &PreviewService{build: build, base: base}
}

// Preview runs the preview pipeline for one subject.
func (s *PreviewService) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	if req.SubjectID <= 0 {
		return nil, fmt.Errorf("%w: subject id must be positive", ErrInvalidRequest)
	}
	opts, err := pipeline.ParseOptionsOver(s.base, req.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	p, err := s.build(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, PreviewTimeout)
	defer cancel()
	pc := p.Run(ctx, pipeline.NewContext(0, req.SubjectID, opts))
	if pc.Failed() {
		return nil, fmt.Errorf("%w: %s", ErrPreviewFailed, pc.Error)
	}

	out := &Preview{
		SubjectID:        req.SubjectID,
		Name:             pc.DisplayName(),
		CategoryID:       pc.CategoryID,
		Tags:             pc.Tags,
		SEOTitle:         pc.SEO.Title,
		SEODescription:   pc.SEO.Description,
		Keywords:         pc.SEO.Keywords,
		RewrittenContent: pc.RewrittenContent,
		Body:             pc.Body,
		Stages:           p.Names(),
	}
	return out, nil
}

// Package stages assembles the content pipeline from its individual stages.
package stages

import (
	"errors"
	"log/slog"

	"pressroom/internal/config"
	"pressroom/internal/jobs"
	"pressroom/internal/pipeline"
	"pressroom/internal/services/llm"
	"pressroom/internal/services/steam"
	"pressroom/internal/services/wordpress"
	"pressroom/internal/stages/analyze"
	"pressroom/internal/stages/assets"
	"pressroom/internal/stages/catalog"
	"pressroom/internal/stages/dedupe"
	"pressroom/internal/stages/publish"
	"pressroom/internal/stages/rewrite"
)

// Catalog supplies subject metadata and image bytes.
type Catalog interface {
	catalog.Source
	assets.Downloader
}

// Writer produces classification and rewritten copy.
type Writer interface {
	analyze.Completer
	rewrite.Completer
}

// Site is the publishing target.
type Site interface {
	analyze.Categories
	assets.Library
	publish.Publisher
}

// Deps carries the collaborators shared by every pipeline build. Writer may be
// nil when no model is configured; jobs that enable analysis or rewriting are
// then refused at build time.
type Deps struct {
	Catalog Catalog
	Lookup  dedupe.Lookup
	Writer  Writer
	Site    Site
	Logger  *slog.Logger
}

// ErrWriterMissing is returned when options need a language model that is not configured.
var ErrWriterMissing = errors.New("language model not configured")

// DepsFromConfig builds the default service clients from configuration.
func DepsFromConfig(cfg *config.Config, store *jobs.Store, logger *slog.Logger) Deps {
	deps := Deps{
		Catalog: steam.NewClient(steam.Config{
			BaseURL:        cfg.Catalog.BaseURL,
			Country:        cfg.Catalog.Country,
			Language:       cfg.Catalog.Language,
			TimeoutSeconds: cfg.Catalog.TimeoutSeconds,
		}),
		Lookup: store,
		Site: wordpress.NewClient(wordpress.Config{
			BaseURL:        cfg.Publisher.BaseURL,
			Username:       cfg.Publisher.Username,
			AppPassword:    cfg.Publisher.AppPassword,
			TimeoutSeconds: cfg.Publisher.TimeoutSeconds,
		}),
		Logger: logger,
	}
	writer := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	if writer.Configured() {
		deps.Writer = writer
	}
	return deps
}

// NewBuilder returns a pipeline builder: fetch, dedupe, analyze, rewrite,
// assets, content, publish. Optional stages are left out when their option
// is off.
func NewBuilder(deps Deps) func(pipeline.Options) (*pipeline.Pipeline, error) {
	return func(opts pipeline.Options) (*pipeline.Pipeline, error) {
		if (opts.EnableAnalyze || opts.EnableRewrite) && deps.Writer == nil {
			return nil, ErrWriterMissing
		}
		p := pipeline.New(deps.Logger).
			Pipe(catalog.NewStage(deps.Catalog, deps.Logger)).
			Pipe(dedupe.NewStage(deps.Lookup, deps.Logger))
		if opts.EnableAnalyze {
			p.Pipe(analyze.NewStage(deps.Writer, deps.Site, deps.Logger))
		}
		if opts.EnableRewrite {
			p.Pipe(rewrite.NewStage(deps.Writer, deps.Logger))
		}
		if opts.EnableAssets {
			p.Pipe(assets.NewStage(deps.Catalog, deps.Site, assets.DefaultConcurrency, deps.Logger))
		}
		return p.
			Pipe(publish.NewContentStage()).
			Pipe(publish.NewStage(deps.Site, deps.Logger)), nil
	}
}

// NewPreviewBuilder returns a builder for dry runs: fetch, analyze, rewrite,
// content. Dedupe, asset uploads and publishing are never included, so a
// preview leaves the site and the ledger untouched.
func NewPreviewBuilder(deps Deps) func(pipeline.Options) (*pipeline.Pipeline, error) {
	return func(opts pipeline.Options) (*pipeline.Pipeline, error) {
		if (opts.EnableAnalyze || opts.EnableRewrite) && deps.Writer == nil {
			return nil, ErrWriterMissing
		}
		p := pipeline.New(deps.Logger).Pipe(catalog.NewStage(deps.Catalog, deps.Logger))
		if opts.EnableAnalyze {
			p.Pipe(analyze.NewStage(deps.Writer, deps.Site, deps.Logger))
		}
		if opts.EnableRewrite {
			p.Pipe(rewrite.NewStage(deps.Writer, deps.Logger))
		}
		return p.Pipe(publish.NewContentStage()), nil
	}
}

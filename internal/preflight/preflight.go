package preflight

import (
	"context"

	"pressroom/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunLocal checks only the filesystem paths the daemon writes to.
func RunLocal(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}

// RunAll executes local checks plus the remote services that are configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	results := RunLocal(cfg)
	if cfg == nil {
		return results
	}
	if cfg.Publisher.BaseURL != "" {
		results = append(results, CheckPublisher(ctx, cfg.Publisher))
	}
	if cfg.LLM.APIKey != "" {
		results = append(results, CheckLLM(ctx, cfg.LLM))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

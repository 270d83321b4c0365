package preflight

import (
	"context"
	"log/slog"

	"landing/internal/config"
	"landing/internal/logging"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// HealthChecker is the slice of the generation service preflight needs.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RunAll executes all applicable preflight checks for the given config.
// llm may be nil, in which case reachability is not probed.
func RunAll(ctx context.Context, cfg *config.Config, llm HealthChecker) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
	}
	if cfg.Preflight.MinFreeMiB > 0 {
		results = append(results, CheckFreeSpace("Artifact free space", cfg.Paths.ArtifactDir, uint64(cfg.Preflight.MinFreeMiB)))
	}
	if llm != nil {
		results = append(results, CheckLLM(ctx, "Generation LLM", cfg.LLM.APIKey, llm))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Log writes one line per result: info for passes, a warning with hint and
// impact for failures.
func Log(logger *slog.Logger, results []Result) {
	if logger == nil {
		return
	}
	for _, r := range results {
		if r.Passed {
			logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_pass"),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix the configuration and restart the daemon"),
			logging.String(logging.FieldImpact, "generation jobs may fail"),
		)
	}
}

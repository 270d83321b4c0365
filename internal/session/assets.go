package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"landing/internal/api"
	"landing/internal/artifact"
	"landing/internal/generation"
	"landing/internal/logging"
	"landing/internal/services"
)

const (
	kindImage = "assets"
	kindSound = "sounds"
)

type assetJob struct {
	kind   string
	key    string
	prompt string
}

type assetOutcome struct {
	job     assetJob
	started bool
	path    string
	err     error
}

type assetResults struct {
	images  []artifact.AssetFile
	sounds  []artifact.AssetFile
	missing []string
}

func (a assetResults) imageKeys() []string {
	return fileKeys(a.images)
}

func (a assetResults) soundKeys() []string {
	return fileKeys(a.sounds)
}

func fileKeys(files []artifact.AssetFile) []string {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		keys = append(keys, f.Key)
	}
	return keys
}

// generateAssets renders every planned image and sound with at most
// maxParallel calls in flight. Workers only report back; this goroutine
// owns all session mutations and event emission. A single failed asset is
// soft. Running out of phase time is fatal.
func (p *pipelineRun) generateAssets(ctx context.Context, analysis generation.Analysis, staging string) (assetResults, error) {
	var results assetResults
	jobs := make([]assetJob, 0, len(analysis.Assets)+len(analysis.Sounds))
	for _, a := range analysis.Assets {
		jobs = append(jobs, assetJob{kind: kindImage, key: a.Key, prompt: a.Prompt})
	}
	for _, s := range analysis.Sounds {
		jobs = append(jobs, assetJob{kind: kindSound, key: s.Key, prompt: s.Prompt})
	}

	if err := p.advance(StateGeneratingAssets, progressPaletteReady, StateGeneratingAssets.Label()); err != nil {
		return results, err
	}
	if len(jobs) == 0 {
		return results, p.advance(StateGeneratingAssets, progressAssetsDone, "No assets needed")
	}

	phaseCtx, cancel := context.WithTimeout(services.WithStage(ctx, string(StateGeneratingAssets)), p.r.phaseTimeout)
	defer cancel()

	outcomes := make(chan assetOutcome, len(jobs)*2)
	sem := make(chan struct{}, p.r.maxParallel)
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job assetJob) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-phaseCtx.Done():
				outcomes <- assetOutcome{job: job, err: phaseCtx.Err()}
				return
			}
			defer func() { <-sem }()
			outcomes <- assetOutcome{job: job, started: true}
			path, err := p.renderAsset(phaseCtx, job, staging)
			outcomes <- assetOutcome{job: job, path: path, err: err}
		}(job)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var advanceErr error
	done := 0
	for out := range outcomes {
		label := assetLabel(out.job)
		if out.started {
			p.emit(api.ToolUseEvent(p.sess.ID, out.job.kind, label, api.ToolRunning))
			continue
		}
		done++
		if out.err != nil {
			results.missing = append(results.missing, out.job.kind+"/"+out.job.key)
			p.emit(api.ToolUseEvent(p.sess.ID, out.job.kind, label, api.ToolFailed))
			logging.WarnWithContext(p.logger, "asset generation failed", "asset_generation_failed",
				logging.String("asset_key", out.job.key),
				logging.String("asset_kind", out.job.kind),
				logging.Error(out.err),
				logging.String(logging.FieldErrorHint, "check image/sound provider status"),
				logging.String(logging.FieldImpact, "placeholder left unreplaced in the page"),
			)
		} else {
			file := artifact.AssetFile{Key: out.job.key, SourcePath: out.path}
			if out.job.kind == kindSound {
				results.sounds = append(results.sounds, file)
			} else {
				results.images = append(results.images, file)
			}
			p.emit(api.ToolUseEvent(p.sess.ID, out.job.kind, label, api.ToolComplete))
		}
		if advanceErr != nil {
			continue
		}
		computed := progressPaletteReady + (progressAssetsDone-progressPaletteReady)*done/len(jobs)
		if err := p.advance(StateGeneratingAssets, computed, fmt.Sprintf("Generated %d of %d assets", done, len(jobs))); err != nil {
			// Keep draining so workers exit; stop spending provider calls.
			advanceErr = err
			cancel()
		}
	}

	if advanceErr != nil {
		return results, advanceErr
	}
	if ctx.Err() != nil {
		return results, services.Wrap(services.ErrTransient, string(StateGeneratingAssets), "assets", "cancelled", ctx.Err())
	}
	if errors.Is(phaseCtx.Err(), context.DeadlineExceeded) && len(results.missing) > 0 {
		return results, services.Wrap(services.ErrTimeout, string(StateGeneratingAssets), "assets",
			fmt.Sprintf("exceeded %s with %d asset(s) unfinished", p.r.phaseTimeout, len(results.missing)), phaseCtx.Err())
	}
	return results, nil
}

func (p *pipelineRun) renderAsset(ctx context.Context, job assetJob, staging string) (path string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("asset %s panicked: %v", job.key, rec)
		}
	}()
	if job.kind == kindSound {
		return p.r.collab.Sound(ctx, generation.SoundSpec{Key: job.key, Prompt: job.prompt}, staging)
	}
	return p.r.collab.Asset(ctx, generation.AssetSpec{Key: job.key, Prompt: job.prompt}, staging)
}

func assetLabel(job assetJob) string {
	if job.kind == kindSound {
		return "Sound " + job.key
	}
	return "Image " + job.key
}

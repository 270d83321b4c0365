package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"landing/internal/api"
	"landing/internal/artifact"
	"landing/internal/generation"
	"landing/internal/logging"
	"landing/internal/notifications"
	"landing/internal/records"
	"landing/internal/services"
)

// Progress checkpoints reported at phase boundaries.
const (
	progressAnalyzing    = 5
	progressAnalyzed     = 15
	progressPaletteReady = 25
	progressAssetsDone   = 70
	progressCoding       = 75
	progressCodeReady    = 90
	progressAssembling   = 92
)

type pipelineRun struct {
	r       *Runner
	sess    Session
	events  chan<- api.Event
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	started time.Time
	stage   State
}

// RunPipeline executes every phase for sess and publishes events on events,
// closing it on return. Exactly one terminal event is sent unless the
// session was deleted while running.
func (r *Runner) RunPipeline(ctx context.Context, sess Session, in Input, events chan<- api.Event) {
	defer close(events)

	ctx = services.WithLandingID(ctx, sess.ID)
	ctx = services.WithOwnerID(ctx, sess.OwnerID)
	p := &pipelineRun{
		r:       r,
		sess:    sess,
		events:  events,
		logger:  logging.WithContext(ctx, r.logger),
		sampler: logging.NewProgressSampler(10),
		started: time.Now(),
		stage:   StatePending,
	}
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("pipeline panic",
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
				logging.Alert("pipeline_panic"),
			)
			p.fail(ctx, services.Wrap(services.ErrTransient, string(p.stage), "pipeline", fmt.Sprintf("internal error: %v", rec), nil))
		}
	}()

	if err := p.execute(ctx, in); err != nil {
		p.fail(ctx, err)
	}
}

func (p *pipelineRun) execute(ctx context.Context, in Input) error {
	req := generation.Request{Prompt: in.Prompt, Title: in.Title}
	if err := p.advance(StatePending, 0, "Queued"); err != nil {
		return err
	}

	if err := p.advance(StateAnalyzing, progressAnalyzing, StateAnalyzing.Label()); err != nil {
		return err
	}
	var analysis generation.Analysis
	err := p.step(ctx, "analysis", "Analyzing prompt", func(ctx context.Context) error {
		var err error
		analysis, err = p.r.collab.Analyze(ctx, req)
		return err
	})
	if err != nil {
		return err
	}
	if _, err := p.r.registry.Attach(p.sess.ID, analysis.Raw, nil); err != nil {
		return err
	}
	if err := p.advance(StateAnalyzing, progressAnalyzed, "Choosing palette"); err != nil {
		return err
	}

	var palette generation.Palette
	err = p.step(ctx, "palette", "Choosing palette", func(ctx context.Context) error {
		var err error
		palette, err = p.r.collab.Palette(ctx, req, analysis)
		return err
	})
	if err != nil {
		return err
	}
	if _, err := p.r.registry.Attach(p.sess.ID, nil, palette.Raw); err != nil {
		return err
	}
	if err := p.advance(StateAnalyzing, progressPaletteReady, "Palette ready"); err != nil {
		return err
	}

	staging := filepath.Join(p.r.stagingDir, p.sess.ID)
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			p.logger.Debug("staging cleanup failed", logging.String("path", staging), logging.Error(err))
		}
	}()
	assets, err := p.generateAssets(ctx, analysis, staging)
	if err != nil {
		return err
	}

	if err := p.advance(StateGeneratingCode, progressCoding, StateGeneratingCode.Label()); err != nil {
		return err
	}
	var html string
	err = p.step(ctx, "code", "Writing page", func(ctx context.Context) error {
		var err error
		html, err = p.r.collab.Code(ctx, generation.CodeRequest{
			Request:  req,
			Analysis: analysis,
			Palette:  palette,
			Assets:   assets.imageKeys(),
			Sounds:   assets.soundKeys(),
		})
		return err
	})
	if err != nil {
		return err
	}
	if err := p.advance(StateGeneratingCode, progressCodeReady, "Page written"); err != nil {
		return err
	}

	if err := p.advance(StateAssembling, progressAssembling, StateAssembling.Label()); err != nil {
		return err
	}
	return p.assemble(ctx, in, analysis, palette, assets, html)
}

func (p *pipelineRun) assemble(ctx context.Context, in Input, analysis generation.Analysis, palette generation.Palette, assets assetResults, html string) error {
	// A job deleted mid-run must not leave a bundle behind.
	if !p.r.registry.Exists(p.sess.ID) {
		return errSessionGone
	}
	title := firstNonEmpty(analysis.Title, in.Title, p.sess.Title, "Untitled landing")
	completed := time.Now().UTC()
	bundle, err := p.r.bundles.Assemble(ctx, artifact.AssembleRequest{
		LandingID: p.sess.ID,
		OwnerID:   p.sess.OwnerID,
		HTML:      html,
		Assets:    assets.images,
		Sounds:    assets.sounds,
		Metadata: artifact.Metadata{
			Title:         title,
			Prompt:        in.Prompt,
			Analysis:      analysis.Raw,
			Palette:       palette.Raw,
			MissingAssets: assets.missing,
			CreatedAt:     p.sess.CreatedAt.UTC(),
			CompletedAt:   completed,
			DurationMs:    completed.Sub(p.sess.CreatedAt).Milliseconds(),
		},
	})
	if err != nil {
		return err
	}

	meta := bundle.Metadata
	if p.r.records != nil {
		rec := &records.Landing{
			LandingID:    p.sess.ID,
			OwnerID:      p.sess.OwnerID,
			Title:        meta.Title,
			Prompt:       meta.Prompt,
			AssetCount:   len(meta.Assets),
			SoundCount:   len(meta.Sounds),
			MissingCount: len(meta.MissingAssets),
			CreatedAt:    meta.CreatedAt,
			CompletedAt:  meta.CompletedAt,
			DurationMs:   meta.DurationMs,
		}
		if err := p.r.records.Insert(ctx, rec); err != nil {
			logging.WarnWithContext(p.logger, "landing record not persisted", "record_insert_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the landings database"),
				logging.String(logging.FieldImpact, "status recovery falls back to the bundle on disk"),
			)
		}
	}

	snap, err := p.r.registry.Complete(p.sess.ID, "Landing ready")
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// Deleted while assembling: the delete handler found nothing on
			// disk yet, so the bundle and record written above are removed here.
			p.discardOutputs()
		}
		return err
	}
	images := make([]string, 0, len(meta.Assets))
	for _, name := range meta.Assets {
		images = append(images, api.AssetPath(p.sess.ID)+"assets/"+name)
	}
	p.emit(api.CompleteEvent(p.sess.ID, images, api.PreviewPath(p.sess.ID), time.Since(p.started)))
	p.logger.Info("generation completed",
		logging.String("title", meta.Title),
		logging.Int("asset_count", len(meta.Assets)),
		logging.Int("missing_count", len(meta.MissingAssets)),
		logging.Int("progress", snap.Progress),
		logging.Duration("duration", time.Since(p.started)),
		logging.String(logging.FieldEventType, "generation_complete"),
	)
	p.notify(ctx, notifications.EventLandingCompleted, notifications.Payload{
		"title":    meta.Title,
		"duration": time.Since(p.started),
		"missing":  len(meta.MissingAssets),
	})
	return nil
}

// discardOutputs removes the bundle and record of a session that no longer
// exists. Durable state must only ever describe landings that completed and
// were not deleted.
func (p *pipelineRun) discardOutputs() {
	ctx := context.WithoutCancel(p.r.baseCtx)
	if _, err := p.r.bundles.Delete(p.sess.ID, p.sess.OwnerID); err != nil {
		logging.WarnWithContext(p.logger, "bundle of deleted landing not removed", "bundle_discard_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the bundle directory manually"),
			logging.String(logging.FieldImpact, "deleted landing still listed"),
		)
	}
	if p.r.records != nil {
		if _, err := p.r.records.Delete(ctx, p.sess.ID, p.sess.OwnerID); err != nil {
			logging.WarnWithContext(p.logger, "record of deleted landing not removed", "record_discard_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the landings database"),
				logging.String(logging.FieldImpact, "deleted landing may report complete"),
			)
		}
	}
}

// advance records a transition and publishes the resulting progress event.
// The event carries the registry's value, never the raw input, so reported
// progress cannot regress.
func (p *pipelineRun) advance(state State, progress int, message string) error {
	snap, err := p.r.registry.Advance(p.sess.ID, state, progress, message)
	if err != nil {
		return err
	}
	p.stage = snap.State
	if p.sampler.ShouldLog(snap.Progress, string(snap.State)) {
		p.logger.Info("generation progress",
			logging.String(logging.FieldStage, string(snap.State)),
			logging.Int("progress", snap.Progress),
			logging.String("message", snap.Message),
		)
	}
	p.emit(api.ProgressEvent(p.sess.ID, string(snap.State), snap.Message, snap.Progress))
	return nil
}

// step runs one collaborator call bounded by the phase timeout and brackets
// it with tool_use events.
func (p *pipelineRun) step(ctx context.Context, tool, label string, fn func(context.Context) error) error {
	p.emit(api.ToolUseEvent(p.sess.ID, tool, label, api.ToolRunning))
	err := p.call(ctx, tool, fn)
	if err != nil {
		p.emit(api.ToolUseEvent(p.sess.ID, tool, label, api.ToolFailed))
		return err
	}
	p.emit(api.ToolUseEvent(p.sess.ID, tool, label, api.ToolComplete))
	return nil
}

func (p *pipelineRun) call(ctx context.Context, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(services.WithStage(ctx, string(p.stage)), p.r.phaseTimeout)
	defer cancel()
	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		if !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrTimeout, string(p.stage), op, fmt.Sprintf("exceeded %s", p.r.phaseTimeout), err)
		}
		return err
	}
	if !errors.Is(err, services.ErrTimeout) && !errors.Is(err, services.ErrExternalTool) &&
		!errors.Is(err, services.ErrValidation) && !errors.Is(err, services.ErrTransient) {
		err = services.Wrap(services.ErrExternalTool, string(p.stage), op, "collaborator failed", err)
	}
	return err
}

// fail moves the session to failed and publishes the terminal error event.
// It is a no-op when the session is gone or already terminal, which is what
// keeps the terminal event unique.
func (p *pipelineRun) fail(ctx context.Context, cause error) {
	snap, err := p.r.registry.Fail(p.sess.ID, cause)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			p.logger.Info("session deleted while running; result discarded",
				logging.String(logging.FieldStage, string(p.stage)),
				logging.String(logging.FieldEventType, "generation_discarded"),
			)
		}
		return
	}
	logging.ErrorWithContext(p.logger, "generation failed", "generation_failed",
		logging.String(logging.FieldStage, string(p.stage)),
		logging.String(logging.FieldErrorCode, snap.ErrorCode),
		logging.Error(cause),
		logging.Alert("generation_failure"),
		logging.String(logging.FieldErrorHint, failureHint(snap.ErrorCode)),
	)
	p.emit(api.ErrorEvent(p.sess.ID, snap.Error, snap.ErrorCode))
	p.notify(ctx, notifications.EventLandingFailed, notifications.Payload{
		"stage": string(p.stage),
		"error": snap.Error,
	})
}

func (p *pipelineRun) emit(evt api.Event) {
	p.events <- evt
}

func (p *pipelineRun) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if p.r.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := p.r.notifier.Publish(notifyCtx, event, payload); err != nil {
		p.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func failureHint(code string) string {
	switch code {
	case services.ReasonTimeout:
		return "provider did not answer within sessions.phase_timeout_seconds"
	case services.ReasonUpstream:
		return "check provider credentials and status"
	case services.ReasonInvalidInput:
		return "check the request payload"
	default:
		return "check daemon logs for details"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

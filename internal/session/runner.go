package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"landing/internal/api"
	"landing/internal/artifact"
	"landing/internal/config"
	"landing/internal/generation"
	"landing/internal/hub"
	"landing/internal/logging"
	"landing/internal/notifications"
	"landing/internal/records"
)

const eventBuffer = 64

// Broadcaster delivers events to a hub channel.
type Broadcaster interface {
	Broadcast(channelID string, event any) (int, error)
}

// BundleWriter materializes finished jobs and removes bundles whose session
// was deleted while they were being written.
type BundleWriter interface {
	Assemble(ctx context.Context, req artifact.AssembleRequest) (*artifact.Bundle, error)
	Delete(landingID string, ownerID int64) (bool, error)
}

// RecordWriter persists the durable completion record.
type RecordWriter interface {
	Insert(ctx context.Context, rec *records.Landing) error
	Delete(ctx context.Context, landingID string, ownerID int64) (bool, error)
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Registry     *Registry
	Collaborator generation.Collaborator
	Bundles      BundleWriter
	Records      RecordWriter
	Hub          Broadcaster
	Notifier     notifications.Service
	Logger       *slog.Logger
}

// Runner launches and drives generation jobs.
type Runner struct {
	registry *Registry
	collab   generation.Collaborator
	bundles  BundleWriter
	records  RecordWriter
	hub      Broadcaster
	notifier notifications.Service
	logger   *slog.Logger

	stagingDir   string
	phaseTimeout time.Duration
	firstDelay   time.Duration
	maxParallel  int

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewRunner wires a runner from configuration.
func NewRunner(cfg *config.Config, deps Deps) *Runner {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	maxParallel := cfg.Sessions.MaxParallelAssets
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Runner{
		registry:     deps.Registry,
		collab:       deps.Collaborator,
		bundles:      deps.Bundles,
		records:      deps.Records,
		hub:          deps.Hub,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(deps.Logger, "session-runner"),
		stagingDir:   cfg.Paths.StagingDir,
		phaseTimeout: cfg.PhaseTimeout(),
		firstDelay:   cfg.FirstBroadcastDelay(),
		maxParallel:  maxParallel,
		baseCtx:      context.Background(),
	}
}

// WithBaseContext sets the context every job runs under. Cancelling it
// stops in-flight jobs, which then fail with a terminal event.
func (r *Runner) WithBaseContext(ctx context.Context) *Runner {
	if ctx != nil {
		r.baseCtx = ctx
	}
	return r
}

// Registry exposes the registry the runner mutates.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Start registers a pending job for ownerID and returns immediately. The
// pipeline continues on a detached goroutine.
func (r *Runner) Start(ownerID int64, in Input) (Session, error) {
	sess, err := r.registry.Create(ownerID, in)
	if err != nil {
		return Session{}, err
	}
	events := make(chan api.Event, eventBuffer)
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.forward(sess, events)
	}()
	go func() {
		defer r.wg.Done()
		r.RunPipeline(r.baseCtx, sess, in, events)
	}()
	r.logger.Info("generation started",
		logging.String(logging.FieldLandingID, sess.ID),
		logging.Int64(logging.FieldOwnerID, ownerID),
		logging.String(logging.FieldEventType, "generation_start"),
	)
	return sess, nil
}

// DeleteSession removes a job. Events it produces afterwards are dropped.
func (r *Runner) DeleteSession(id string) bool {
	return r.registry.Delete(id)
}

// Wait blocks until every started job and its forwarder have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// forward drains one job's events in order and broadcasts them while the
// job is still registered.
func (r *Runner) forward(sess Session, events <-chan api.Event) {
	channels := []string{hub.LandingChannel(sess.ID)}
	if sess.ChatID != "" {
		chat := hub.ChatChannel(sess.ChatID)
		if _, _, err := hub.ParseChannel(chat); err == nil {
			channels = append(channels, chat)
		}
	}
	logger := r.logger.With(logging.String(logging.FieldLandingID, sess.ID))

	// Give the client a moment to subscribe after receiving the id. Polling
	// covers anything missed.
	if r.firstDelay > 0 {
		timer := time.NewTimer(r.firstDelay)
		select {
		case <-timer.C:
		case <-r.baseCtx.Done():
			timer.Stop()
		}
	}

	dropped := 0
	for evt := range events {
		if !r.registry.Exists(sess.ID) {
			dropped++
			continue
		}
		for _, ch := range channels {
			if _, err := r.hub.Broadcast(ch, evt); err != nil {
				logger.Warn("broadcast failed",
					logging.String(logging.FieldChannelID, ch),
					logging.String("event", string(evt.Type)),
					logging.Error(err),
					logging.String(logging.FieldEventType, "broadcast_failed"),
					logging.String(logging.FieldErrorHint, "client can recover by polling status"),
					logging.String(logging.FieldImpact, "live progress update lost"),
				)
			}
		}
	}
	if dropped > 0 {
		logger.Debug("dropped events for deleted session", logging.Int("dropped", dropped))
	}
}

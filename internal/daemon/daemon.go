package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"landing/internal/api"
	"landing/internal/artifact"
	"landing/internal/config"
	"landing/internal/fileutil"
	"landing/internal/hub"
	"landing/internal/logging"
	"landing/internal/notifications"
	"landing/internal/preflight"
	"landing/internal/records"
	"landing/internal/session"
)

// LockFile is the single-instance lock inside the log directory.
const LockFile = "landing.lock"

// Deps are the components a daemon coordinates.
type Deps struct {
	Runner   *session.Runner
	Bundles  *artifact.Store
	Records  *records.Store
	Hub      *hub.Hub
	Notifier notifications.Service
	// LLM is probed by preflight; nil skips the reachability check.
	LLM preflight.HealthChecker
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	runner   *session.Runner
	registry *session.Registry
	status   *session.StatusService
	bundles  *artifact.Store
	records  *records.Store
	hub      *hub.Hub
	notifier notifications.Service
	llm      preflight.HealthChecker

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	bg        sync.WaitGroup

	checksMu sync.RWMutex
	checks   []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Runner == nil || deps.Bundles == nil || deps.Hub == nil {
		return nil, errors.New("daemon requires config, runner, artifact store, and hub")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	var lookup session.RecordLookup
	if deps.Records != nil {
		lookup = deps.Records
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, LockFile)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		runner:   deps.Runner,
		registry: deps.Runner.Registry(),
		status:   session.NewStatusService(deps.Runner.Registry(), lookup, deps.Bundles),
		bundles:  deps.Bundles,
		records:  deps.Records,
		hub:      deps.Hub,
		notifier: notifier,
		llm:      deps.LLM,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches background services and the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another landing daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.runner.WithBaseContext(d.ctx)

	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}

	d.bg.Add(3)
	go func() {
		defer d.bg.Done()
		d.hub.Run(d.ctx, d.cfg.PingInterval())
	}()
	go func() {
		defer d.bg.Done()
		d.registry.RunReaper(d.ctx, d.cfg.ReapInterval(), d.cfg.IdleTTL())
	}()
	go func() {
		defer d.bg.Done()
		d.RunPreflight(d.ctx)
	}()

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("landing daemon started",
		logging.String("lock", d.lockPath),
		logging.String("artifact_dir", d.bundles.Root()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop cancels in-flight jobs, stops background services, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.runner.Wait()
	d.bg.Wait()
	d.hub.CloseAll()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
			logging.String(logging.FieldImpact, "next daemon start may be refused"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("landing daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.records != nil {
		return d.records.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// RunPreflight executes the startup checks, logs them, and keeps the results
// for the status endpoint.
func (d *Daemon) RunPreflight(ctx context.Context) []preflight.Result {
	results := preflight.RunAll(ctx, d.cfg, d.llm)
	preflight.Log(d.logger, results)
	d.checksMu.Lock()
	d.checks = results
	d.checksMu.Unlock()
	return results
}

// Status returns the current daemon status.
func (d *Daemon) Status() api.DaemonStatus {
	d.checksMu.RLock()
	checks := make([]api.CheckResult, 0, len(d.checks))
	for _, c := range d.checks {
		checks = append(checks, api.CheckResult{Name: c.Name, Passed: c.Passed, Detail: c.Detail})
	}
	d.checksMu.RUnlock()

	status := api.DaemonStatus{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		LockFilePath:   d.lockPath,
		ArtifactDir:    d.bundles.Root(),
		ActiveSessions: d.registry.Len(),
		SessionStates:  d.registry.StateCounts(),
		Hub:            d.hub.Stats(),
		Preflight:      checks,
	}
	if d.records != nil {
		status.DatabasePath = d.records.Path()
	}
	if size, err := fileutil.DirSize(status.ArtifactDir); err == nil {
		status.ArtifactBytes = size
	}
	if !d.startedAt.IsZero() {
		status.StartedAt = api.FormatTime(d.startedAt)
	}
	return status
}

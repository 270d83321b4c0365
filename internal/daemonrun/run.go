package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"landing/internal/artifact"
	"landing/internal/config"
	"landing/internal/daemon"
	"landing/internal/generation"
	"landing/internal/hub"
	"landing/internal/logging"
	"landing/internal/logs"
	"landing/internal/notifications"
	"landing/internal/records"
	"landing/internal/session"
)

// PIDFile is written into the log directory while the daemon runs.
const PIDFile = "landing.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the landing daemon and blocks until SIGINT/SIGTERM or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("landing-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update landing.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "landing-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFile)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := records.Open(cfg)
	if err != nil {
		logger.Error("open records store", logging.Error(err))
		return err
	}

	bundles, err := artifact.New(cfg.Paths.ArtifactDir, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("open artifact store: %w", err)
	}

	progressHub := hub.New(logger)
	notifier := notifications.NewService(cfg)
	runner := session.NewRunner(cfg, session.Deps{
		Registry:     session.NewRegistry(logger),
		Collaborator: generation.NewService(cfg),
		Bundles:      bundles,
		Records:      store,
		Hub:          progressHub,
		Notifier:     notifier,
		Logger:       logger,
	})

	// Preflight gets a single attempt so a dead provider is reported quickly.
	probe := generation.NewLLMClient(generation.LLMConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	}, generation.WithRetryMaxAttempts(1))

	d, err := daemon.New(cfg, logger, daemon.Deps{
		Runner:   runner,
		Bundles:  bundles,
		Records:  store,
		Hub:      progressHub,
		Notifier: notifier,
		LLM:      probe,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind, the lock file, and directory permissions"),
			logging.String(logging.FieldImpact, "daemon exits without serving requests"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("landing daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon, or 0.
func ReadPID(cfg *config.Config) int {
	if cfg == nil {
		return 0
	}
	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, PIDFile))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("artifact_dir", cfg.Paths.ArtifactDir),
		logging.String("staging_dir", cfg.Paths.StagingDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
		logging.String("llm_model", cfg.LLM.Model),
		logging.Bool("images_key_present", strings.TrimSpace(cfg.Images.APIKey) != ""),
		logging.Bool("sounds_enabled", cfg.Sounds.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Duration("phase_timeout", cfg.PhaseTimeout()),
		logging.Duration("idle_ttl", cfg.IdleTTL()),
		logging.Int("max_parallel_assets", cfg.Sessions.MaxParallelAssets),
	)
}

package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"landing/internal/api"
	"landing/internal/config"
	"landing/internal/daemon"
	"landing/internal/daemonrun"
	"landing/internal/logs"
)

// ErrDaemonNotRunning indicates the daemon did not answer its health check.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Probe is the slice of the API client the controller needs.
type Probe interface {
	Health(ctx context.Context) error
	Status(ctx context.Context) (*api.DaemonStatus, error)
}

// LaunchOptions controls how the detached daemon is started.
type LaunchOptions struct {
	Executable  string
	ConfigPath  string
	LogLevel    string
	Development bool
}

// StartState describes what EnsureStarted did.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop and start outcomes for a restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// Controller drives the daemon process lifecycle.
type Controller struct {
	probe        Probe
	cfg          *config.Config
	launch       func(LaunchOptions) error
	signal       func(pid int, sig unix.Signal) error
	pollInterval time.Duration
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLauncher replaces process launching.
func WithLauncher(fn func(LaunchOptions) error) Option {
	return func(c *Controller) {
		if fn != nil {
			c.launch = fn
		}
	}
}

// WithSignaler replaces process signalling.
func WithSignaler(fn func(pid int, sig unix.Signal) error) Option {
	return func(c *Controller) {
		if fn != nil {
			c.signal = fn
		}
	}
}

// New builds a controller that checks liveness through probe.
func New(cfg *config.Config, probe Probe, opts ...Option) *Controller {
	c := &Controller{
		probe:        probe,
		cfg:          cfg,
		launch:       Launch,
		signal:       unix.Kill,
		pollInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Launch starts a detached `landing daemon` process in its own session so it
// survives the invoking shell.
func Launch(opts LaunchOptions) error {
	exe := strings.TrimSpace(opts.Executable)
	if exe == "" {
		return errors.New("resolve executable: executable path is empty")
	}
	args := []string{"daemon"}
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		args = append(args, "--config", path)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	if opts.Development {
		args = append(args, "--dev")
	}

	proc := exec.Command(exe, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// Running reports whether the daemon answers its health check.
func (c *Controller) Running(ctx context.Context) bool {
	return c.probe.Health(ctx) == nil
}

// EnsureStarted launches the daemon unless it is already healthy, then waits
// up to timeout for it to answer.
func (c *Controller) EnsureStarted(ctx context.Context, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	if c.Running(ctx) {
		return StartResult{State: StartStateAlreadyRunning, PID: c.pid(ctx)}, nil
	}
	if err := c.launch(opts); err != nil {
		return StartResult{}, err
	}
	if err := c.waitFor(ctx, timeout, true); err != nil {
		return StartResult{}, fmt.Errorf("daemon failed to start: %w (see %s)", err, logs.CurrentPath(c.cfg.Paths.LogDir))
	}
	return StartResult{State: StartStateStarted, PID: c.pid(ctx)}, nil
}

// Stop sends SIGTERM and escalates to SIGKILL when the daemon is still
// answering after grace.
func (c *Controller) Stop(ctx context.Context, grace time.Duration) (StopResult, error) {
	if !c.Running(ctx) {
		return StopResult{}, ErrDaemonNotRunning
	}
	pid := c.pid(ctx)
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid (pid file: %s)", c.pidPath())
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	result := StopResult{PID: pid}
	if err := c.signal(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return result, nil
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if err := c.waitFor(ctx, grace, false); err == nil {
		return result, nil
	}

	if err := c.signal(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	result.ForcedKill = true
	for _, path := range []string{c.pidPath(), filepath.Join(c.cfg.Paths.LogDir, daemon.LockFile)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return result, fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return result, nil
}

// Restart stops the daemon if it is running and starts a fresh one.
func (c *Controller) Restart(ctx context.Context, opts LaunchOptions, grace, timeout time.Duration) (RestartResult, error) {
	stopResult, err := c.Stop(ctx, grace)
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return RestartResult{}, err
	}
	startResult, startErr := c.EnsureStarted(ctx, opts, timeout)
	if startErr != nil {
		return RestartResult{}, startErr
	}
	return RestartResult{WasRunning: err == nil, Stop: stopResult, Start: startResult}, nil
}

// pid prefers the daemon's own report and falls back to the pid file.
func (c *Controller) pid(ctx context.Context) int {
	if status, err := c.probe.Status(ctx); err == nil && status != nil && status.PID > 0 {
		return status.PID
	}
	return daemonrun.ReadPID(c.cfg)
}

func (c *Controller) pidPath() string {
	return filepath.Join(c.cfg.Paths.LogDir, daemonrun.PIDFile)
}

// waitFor polls until the health check matches want or timeout elapses.
func (c *Controller) waitFor(ctx context.Context, timeout time.Duration, want bool) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		if c.Running(ctx) == want {
			return nil
		}
		if time.Now().After(deadline) {
			if want {
				return errors.New("timeout waiting for health check")
			}
			return errors.New("daemon still answering")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

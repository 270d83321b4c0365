package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"landing/internal/api"
	"landing/internal/daemon"
	"landing/internal/daemonctl"
	"landing/internal/daemonrun"
	"landing/internal/testsupport"
)

// fakeProcess stands in for the daemon: launching makes it healthy and
// SIGTERM/SIGKILL make it unhealthy unless ignoreTerm is set.
type fakeProcess struct {
	mu         sync.Mutex
	running    bool
	pid        int
	ignoreTerm bool
	launches   int
	signals    []unix.Signal
}

func (f *fakeProcess) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeProcess) Status(context.Context) (*api.DaemonStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return nil, errors.New("connection refused")
	}
	return &api.DaemonStatus{Running: true, PID: f.pid}, nil
}

func (f *fakeProcess) launch(daemonctl.LaunchOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launches++
	f.running = true
	return nil
}

func (f *fakeProcess) signal(pid int, sig unix.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pid != f.pid {
		return unix.ESRCH
	}
	f.signals = append(f.signals, sig)
	if sig == unix.SIGKILL || !f.ignoreTerm {
		f.running = false
	}
	return nil
}

func newController(t *testing.T, proc *fakeProcess) (*daemonctl.Controller, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	return daemonctl.New(cfg, proc,
		daemonctl.WithLauncher(proc.launch),
		daemonctl.WithSignaler(proc.signal),
	), cfg.Paths.LogDir
}

func TestEnsureStartedLaunchesOnce(t *testing.T) {
	proc := &fakeProcess{pid: 4242}
	ctl, _ := newController(t, proc)
	ctx := context.Background()

	res, err := ctl.EnsureStarted(ctx, daemonctl.LaunchOptions{Executable: "landing"}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if res.State != daemonctl.StartStateStarted || res.PID != 4242 {
		t.Fatalf("unexpected start result %+v", res)
	}

	res, err = ctl.EnsureStarted(ctx, daemonctl.LaunchOptions{Executable: "landing"}, time.Second)
	if err != nil {
		t.Fatalf("second EnsureStarted: %v", err)
	}
	if res.State != daemonctl.StartStateAlreadyRunning {
		t.Fatalf("expected already running, got %+v", res)
	}
	if proc.launches != 1 {
		t.Fatalf("expected a single launch, got %d", proc.launches)
	}
}

func TestEnsureStartedTimesOut(t *testing.T) {
	proc := &fakeProcess{pid: 1}
	cfg := testsupport.NewConfig(t)
	ctl := daemonctl.New(cfg, proc, daemonctl.WithLauncher(func(daemonctl.LaunchOptions) error { return nil }))

	if _, err := ctl.EnsureStarted(context.Background(), daemonctl.LaunchOptions{}, 300*time.Millisecond); err == nil {
		t.Fatal("expected timeout when the daemon never becomes healthy")
	}
}

func TestStopGraceful(t *testing.T) {
	proc := &fakeProcess{pid: 4242, running: true}
	ctl, _ := newController(t, proc)

	res, err := ctl.Stop(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.ForcedKill || res.PID != 4242 {
		t.Fatalf("unexpected stop result %+v", res)
	}
	if len(proc.signals) != 1 || proc.signals[0] != unix.SIGTERM {
		t.Fatalf("expected only SIGTERM, got %v", proc.signals)
	}
}

func TestStopEscalatesAndCleansUp(t *testing.T) {
	proc := &fakeProcess{pid: 4242, running: true, ignoreTerm: true}
	ctl, logDir := newController(t, proc)
	pidPath := filepath.Join(logDir, daemonrun.PIDFile)
	lockPath := filepath.Join(logDir, daemon.LockFile)
	for _, path := range []string{pidPath, lockPath} {
		if err := os.WriteFile(path, []byte("4242\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	res, err := ctl.Stop(context.Background(), 300*time.Millisecond)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !res.ForcedKill {
		t.Fatalf("expected forced kill, got %+v", res)
	}
	if len(proc.signals) != 2 || proc.signals[1] != unix.SIGKILL {
		t.Fatalf("expected SIGTERM then SIGKILL, got %v", proc.signals)
	}
	for _, path := range []string{pidPath, lockPath} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed, stat err=%v", path, err)
		}
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	proc := &fakeProcess{pid: 4242}
	ctl, _ := newController(t, proc)

	if _, err := ctl.Stop(context.Background(), time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestRestart(t *testing.T) {
	proc := &fakeProcess{pid: 4242, running: true}
	ctl, _ := newController(t, proc)

	res, err := ctl.Restart(context.Background(), daemonctl.LaunchOptions{Executable: "landing"}, time.Second, time.Second)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !res.WasRunning || res.Start.State != daemonctl.StartStateStarted {
		t.Fatalf("unexpected restart result %+v", res)
	}
	if proc.launches != 1 {
		t.Fatalf("expected one launch, got %d", proc.launches)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := daemonctl.Launch(daemonctl.LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable")
	}
}

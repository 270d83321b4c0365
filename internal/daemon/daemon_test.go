package daemon_test

import (
	"context"
	"net/http"
	"testing"

	"landing/internal/daemon"
	"landing/internal/hub"
	"landing/internal/logging"
	"landing/internal/session"
	"landing/internal/testsupport"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	logger := logging.NewNop()
	bundles := testsupport.MustArtifactStore(t, cfg)
	h := hub.New(logger)
	runner := session.NewRunner(cfg, session.Deps{
		Registry:     session.NewRegistry(logger),
		Collaborator: testsupport.Collaborator{},
		Bundles:      bundles,
		Hub:          h,
		Logger:       logger,
	})
	d, err := daemon.New(cfg, logger, daemon.Deps{Runner: runner, Bundles: bundles, Hub: h})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	resp, err := http.Get("http://" + d.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to be stopped")
	}
	if d.Addr() != "" {
		t.Fatal("listener still reported after stop")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	logger := logging.NewNop()
	bundles := testsupport.MustArtifactStore(t, cfg)
	build := func() *daemon.Daemon {
		h := hub.New(logger)
		runner := session.NewRunner(cfg, session.Deps{
			Registry:     session.NewRegistry(logger),
			Collaborator: testsupport.Collaborator{},
			Bundles:      bundles,
			Hub:          h,
			Logger:       logger,
		})
		d, err := daemon.New(cfg, logger, daemon.Deps{Runner: runner, Bundles: bundles, Hub: h})
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		return d
	}
	first, second := build(), build()
	t.Cleanup(func() {
		first.Close()
		second.Close()
	})

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected second daemon to be refused by the lock")
	}
}

func TestDaemonStatusIncludesPreflight(t *testing.T) {
	d := newDaemon(t)
	results := d.RunPreflight(context.Background())
	if len(results) == 0 {
		t.Fatal("expected preflight results")
	}
	status := d.Status()
	if len(status.Preflight) != len(results) {
		t.Fatalf("status preflight = %d, want %d", len(status.Preflight), len(results))
	}
	if status.Running {
		t.Fatal("daemon not started but reports running")
	}
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"landing/internal/config"
	"landing/internal/daemon"
	"landing/internal/hub"
	"landing/internal/logging"
	"landing/internal/session"
	"landing/internal/testsupport"
)

const testToken = "secret"

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	addr       string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(testToken))
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv(ownerEnv, "")

	configPath := filepath.Join(homeDir, ".config", "landing", "config.toml")
	writeTestConfig(t, configPath, cfg)

	logger := logging.NewNop()
	bundles := testsupport.MustArtifactStore(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	h := hub.New(logger)
	runner := session.NewRunner(cfg, session.Deps{
		Registry:     session.NewRegistry(logger),
		Collaborator: testsupport.Collaborator{},
		Bundles:      bundles,
		Records:      store,
		Hub:          h,
		Logger:       logger,
	})
	d, err := daemon.New(cfg, logger, daemon.Deps{Runner: runner, Bundles: bundles, Records: store, Hub: h})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		addr:       d.Addr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--config", env.configPath, "--addr", env.addr}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nartifact_dir = %q\nstaging_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n[llm]\napi_key = %q\n",
		cfg.Paths.ArtifactDir,
		cfg.Paths.StagingDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
		cfg.LLM.APIKey,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// landingIDFrom extracts the id from create's "Landing <id> <state>" line.
func landingIDFrom(t *testing.T, output string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "Landing" {
			return fields[1]
		}
	}
	t.Fatalf("no landing id in output %q", output)
	return ""
}

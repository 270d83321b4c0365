package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"landing/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("LANDING_LLM_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantArtifacts := filepath.Join(tempHome, ".local", "share", "landing", "artifacts")
	if cfg.Paths.ArtifactDir != wantArtifacts {
		t.Fatalf("unexpected artifact dir: got %q want %q", cfg.Paths.ArtifactDir, wantArtifacts)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7590" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.PhaseTimeout() != 180*time.Second {
		t.Fatalf("unexpected phase timeout: %s", cfg.PhaseTimeout())
	}
	if cfg.FirstBroadcastDelay() != 500*time.Millisecond {
		t.Fatalf("unexpected first broadcast delay: %s", cfg.FirstBroadcastDelay())
	}
	if cfg.Sounds.Enabled {
		t.Fatal("expected sounds disabled by default")
	}
}

func TestLoadMissingLLMKeyFails(t *testing.T) {
	t.Setenv("LANDING_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error when llm key missing")
	}
	if !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	payload := map[string]any{
		"paths": map[string]any{
			"artifact_dir": filepath.Join(dir, "artifacts"),
			"staging_dir":  filepath.Join(dir, "staging"),
			"log_dir":      filepath.Join(dir, "logs"),
			"api_bind":     "127.0.0.1:9999",
		},
		"llm": map[string]any{
			"api_key": "file-key",
		},
		"sessions": map[string]any{
			"phase_timeout_seconds":    5,
			"first_broadcast_delay_ms": 0,
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "DEBUG",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("unexpected llm key: %q", cfg.LLM.APIKey)
	}
	if cfg.PhaseTimeout() != 5*time.Second {
		t.Fatalf("unexpected phase timeout: %s", cfg.PhaseTimeout())
	}
	if cfg.FirstBroadcastDelay() != 0 {
		t.Fatalf("expected zero broadcast delay, got %s", cfg.FirstBroadcastDelay())
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9999" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LANDING_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	os.Unsetenv("LANDING_LLM_API_KEY")
	os.Unsetenv("OPENROUTER_API_KEY")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LANDING_LLM_API_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("LANDING_LLM_API_KEY") })

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "from-dotenv" {
		t.Fatalf("expected key from .env, got %q", cfg.LLM.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "sounds without url",
			mutate: func(c *config.Config) { c.Sounds.Enabled = true },
			want:   "sounds.base_url",
		},
		{
			name:   "bad bind",
			mutate: func(c *config.Config) { c.Paths.APIBind = "nope" },
			want:   "paths.api_bind",
		},
		{
			name:   "shared staging",
			mutate: func(c *config.Config) { c.Paths.StagingDir = c.Paths.ArtifactDir },
			want:   "paths.staging_dir",
		},
		{
			name:   "bad level",
			mutate: func(c *config.Config) { c.Logging.Level = "loud" },
			want:   "logging.level",
		},
		{
			name:   "reap slower than ttl",
			mutate: func(c *config.Config) { c.Sessions.ReapIntervalSeconds = c.Sessions.IdleTTLSeconds + 1 },
			want:   "reap_interval",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.LLM.APIKey = "key"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("LANDING_LLM_API_KEY", "sample-key")
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Sessions.MaxParallelAssets != 4 {
		t.Fatalf("unexpected max parallel assets: %d", cfg.Sessions.MaxParallelAssets)
	}
}

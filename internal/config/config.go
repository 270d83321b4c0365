package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ArtifactDir string `toml:"artifact_dir"`
	StagingDir  string `toml:"staging_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// LLM contains the text-generation connection settings used for analysis,
// palette selection, and code generation.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Images contains the image-generation endpoint settings.
type Images struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Size           string `toml:"size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Sounds contains the optional sound-effect endpoint settings.
type Sounds struct {
	Enabled        bool   `toml:"enabled"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Sessions contains generation session lifecycle settings.
type Sessions struct {
	IdleTTLSeconds        int `toml:"idle_ttl_seconds"`
	ReapIntervalSeconds   int `toml:"reap_interval_seconds"`
	PhaseTimeoutSeconds   int `toml:"phase_timeout_seconds"`
	FirstBroadcastDelayMs int `toml:"first_broadcast_delay_ms"`
	MaxParallelAssets     int `toml:"max_parallel_assets"`
}

// Hub contains live connection settings for the progress hub.
type Hub struct {
	PingIntervalSeconds int   `toml:"ping_interval_seconds"`
	WriteTimeoutSeconds int   `toml:"write_timeout_seconds"`
	MaxMessageBytes     int64 `toml:"max_message_bytes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// Preflight contains startup check thresholds.
type Preflight struct {
	MinFreeMiB int `toml:"min_free_mib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the landing daemon.
//
// Configuration sections by subsystem:
//   - Paths: artifact root, staging scratch space, logs, and API bind address
//   - LLM: text generation for analysis, palette, and code
//   - Images: image generation endpoint
//   - Sounds: optional sound effect endpoint
//   - Sessions: idle eviction, phase timeouts, broadcast delay
//   - Hub: live connection liveness and write limits
//   - Notifications: ntfy push notification settings
//   - Preflight: startup check thresholds
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Images        Images        `toml:"images"`
	Sounds        Sounds        `toml:"sounds"`
	Sessions      Sessions      `toml:"sessions"`
	Hub           Hub           `toml:"hub"`
	Notifications Notifications `toml:"notifications"`
	Preflight     Preflight     `toml:"preflight"`
	Logging       Logging       `toml:"logging"`
}

// Load reads the config at path, or the first of the default locations that
// exists, layering it over Default. A .env beside the file is applied to the
// environment first so secrets can stay out of the TOML. The returned config
// is normalized and validated; exists reports whether a file was actually
// read.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	resolved, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := loadDotEnv(filepath.Dir(resolved)); err != nil {
		return nil, "", false, err
	}

	loaded := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config %s: %w", resolved, err)
		}
		if err := toml.Unmarshal(data, &loaded); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}
	if err := loaded.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, "", false, err
	}
	return &loaded, resolved, exists, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArtifactDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PhaseTimeout bounds every outbound collaborator call made by a pipeline phase.
func (c *Config) PhaseTimeout() time.Duration {
	return time.Duration(c.Sessions.PhaseTimeoutSeconds) * time.Second
}

// IdleTTL is how long a terminal session stays in memory after its last update.
func (c *Config) IdleTTL() time.Duration {
	return time.Duration(c.Sessions.IdleTTLSeconds) * time.Second
}

// ReapInterval is how often idle sessions are evicted.
func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Sessions.ReapIntervalSeconds) * time.Second
}

// FirstBroadcastDelay is the pause before a new session's first event is broadcast.
func (c *Config) FirstBroadcastDelay() time.Duration {
	return time.Duration(c.Sessions.FirstBroadcastDelayMs) * time.Millisecond
}

// PingInterval is the hub liveness sweep period.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Hub.PingIntervalSeconds) * time.Second
}

// WriteTimeout bounds a single write to a live connection.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Hub.WriteTimeoutSeconds) * time.Second
}

package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateSounds(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ArtifactDir == "" {
		return errors.New("paths.artifact_dir must be set")
	}
	if c.Paths.ArtifactDir == string(filepath.Separator) {
		return errors.New("paths.artifact_dir must not be the filesystem root")
	}
	if c.Paths.StagingDir == c.Paths.ArtifactDir {
		return errors.New("paths.staging_dir must differ from paths.artifact_dir")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("llm.api_key is required. Set LANDING_LLM_API_KEY (or OPENROUTER_API_KEY) or edit %s (create with 'landing config init')", defaultPath)
	}
	if !strings.HasPrefix(c.LLM.BaseURL, "http://") && !strings.HasPrefix(c.LLM.BaseURL, "https://") {
		return fmt.Errorf("llm.base_url must be an http(s) URL, got %q", c.LLM.BaseURL)
	}
	return nil
}

func (c *Config) validateSounds() error {
	if !c.Sounds.Enabled {
		return nil
	}
	if c.Sounds.BaseURL == "" {
		return errors.New("sounds.base_url must be set when sounds.enabled is true")
	}
	return nil
}

func (c *Config) validateSessions() error {
	if c.Sessions.ReapIntervalSeconds > c.Sessions.IdleTTLSeconds {
		return errors.New("sessions.reap_interval_seconds must not exceed sessions.idle_ttl_seconds")
	}
	if c.Sessions.FirstBroadcastDelayMs > 10_000 {
		return errors.New("sessions.first_broadcast_delay_ms must be at most 10000")
	}
	if c.Sessions.MaxParallelAssets > 32 {
		return errors.New("sessions.max_parallel_assets must be at most 32")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

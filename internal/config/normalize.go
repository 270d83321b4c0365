package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeImages()
	c.normalizeSounds()
	c.normalizeSessions()
	c.normalizeHub()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		c.Paths.ArtifactDir = defaultArtifactDir
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("LANDING_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("LANDING_LLM_API_KEY", "OPENROUTER_API_KEY")
	}
}

func (c *Config) normalizeImages() {
	c.Images.BaseURL = strings.TrimSpace(c.Images.BaseURL)
	if c.Images.BaseURL == "" {
		c.Images.BaseURL = defaultImagesBaseURL
	}
	c.Images.Model = strings.TrimSpace(c.Images.Model)
	if c.Images.Model == "" {
		c.Images.Model = defaultImagesModel
	}
	c.Images.Size = strings.TrimSpace(c.Images.Size)
	if c.Images.Size == "" {
		c.Images.Size = defaultImagesSize
	}
	if c.Images.TimeoutSeconds <= 0 {
		c.Images.TimeoutSeconds = defaultImagesTimeoutSeconds
	}
	c.Images.APIKey = strings.TrimSpace(c.Images.APIKey)
	if c.Images.APIKey == "" {
		c.Images.APIKey = lookupEnv("LANDING_IMAGES_API_KEY", "OPENAI_API_KEY")
	}
}

func (c *Config) normalizeSounds() {
	c.Sounds.BaseURL = strings.TrimSpace(c.Sounds.BaseURL)
	c.Sounds.APIKey = strings.TrimSpace(c.Sounds.APIKey)
	if c.Sounds.APIKey == "" {
		c.Sounds.APIKey = lookupEnv("LANDING_SOUNDS_API_KEY")
	}
	if c.Sounds.TimeoutSeconds <= 0 {
		c.Sounds.TimeoutSeconds = defaultSoundsTimeoutSeconds
	}
}

func (c *Config) normalizeSessions() {
	if c.Sessions.IdleTTLSeconds <= 0 {
		c.Sessions.IdleTTLSeconds = defaultIdleTTLSeconds
	}
	if c.Sessions.ReapIntervalSeconds <= 0 {
		c.Sessions.ReapIntervalSeconds = defaultReapIntervalSeconds
	}
	if c.Sessions.PhaseTimeoutSeconds <= 0 {
		c.Sessions.PhaseTimeoutSeconds = defaultPhaseTimeoutSeconds
	}
	if c.Sessions.FirstBroadcastDelayMs < 0 {
		c.Sessions.FirstBroadcastDelayMs = 0
	}
	if c.Sessions.MaxParallelAssets <= 0 {
		c.Sessions.MaxParallelAssets = defaultMaxParallelAssets
	}
}

func (c *Config) normalizeHub() {
	if c.Hub.PingIntervalSeconds <= 0 {
		c.Hub.PingIntervalSeconds = defaultPingIntervalSeconds
	}
	if c.Hub.WriteTimeoutSeconds <= 0 {
		c.Hub.WriteTimeoutSeconds = defaultWriteTimeoutSeconds
	}
	if c.Hub.MaxMessageBytes <= 0 {
		c.Hub.MaxMessageBytes = defaultMaxMessageBytes
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = lookupEnv("LANDING_NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

package config

const (
	defaultConfigPath            = "~/.config/landing/config.toml"
	defaultArtifactDir           = "~/.local/share/landing/artifacts"
	defaultStagingDir            = "~/.local/share/landing/staging"
	defaultLogDir                = "~/.local/share/landing/logs"
	defaultAPIBind               = "127.0.0.1:7590"
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMReferer            = "https://github.com/landing/landing"
	defaultLLMTitle              = "Landing Generator"
	defaultLLMTimeoutSeconds     = 90
	defaultImagesBaseURL         = "https://api.openai.com/v1/images/generations"
	defaultImagesModel           = "gpt-image-1"
	defaultImagesSize            = "1024x1024"
	defaultImagesTimeoutSeconds  = 120
	defaultSoundsTimeoutSeconds  = 60
	defaultIdleTTLSeconds        = 1800
	defaultReapIntervalSeconds   = 60
	defaultPhaseTimeoutSeconds   = 180
	defaultFirstBroadcastDelayMs = 500
	defaultMaxParallelAssets     = 4
	defaultPingIntervalSeconds   = 30
	defaultWriteTimeoutSeconds   = 10
	defaultMaxMessageBytes       = 64 * 1024
	defaultNotifyTimeout         = 10
	defaultMinFreeMiB            = 512
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ArtifactDir: defaultArtifactDir,
			StagingDir:  defaultStagingDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Images: Images{
			BaseURL:        defaultImagesBaseURL,
			Model:          defaultImagesModel,
			Size:           defaultImagesSize,
			TimeoutSeconds: defaultImagesTimeoutSeconds,
		},
		Sounds: Sounds{
			TimeoutSeconds: defaultSoundsTimeoutSeconds,
		},
		Sessions: Sessions{
			IdleTTLSeconds:        defaultIdleTTLSeconds,
			ReapIntervalSeconds:   defaultReapIntervalSeconds,
			PhaseTimeoutSeconds:   defaultPhaseTimeoutSeconds,
			FirstBroadcastDelayMs: defaultFirstBroadcastDelayMs,
			MaxParallelAssets:     defaultMaxParallelAssets,
		},
		Hub: Hub{
			PingIntervalSeconds: defaultPingIntervalSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
			MaxMessageBytes:     defaultMaxMessageBytes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Errors:         true,
		},
		Preflight: Preflight{
			MinFreeMiB: defaultMinFreeMiB,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

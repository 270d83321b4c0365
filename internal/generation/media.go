package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"landing/internal/fileutil"
)

// ImageConfig captures the image endpoint settings.
type ImageConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Size           string
	TimeoutSeconds int
}

// ImageClient calls an OpenAI-compatible image generation endpoint.
type ImageClient struct {
	cfg ImageConfig
	transport
}

// NewImageClient constructs an image client.
func NewImageClient(cfg ImageConfig, opts ...Option) *ImageClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	return &ImageClient{cfg: cfg, transport: newTransport(cfg.TimeoutSeconds, opts)}
}

type imageRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// Generate renders prompt and writes the image to stagingDir/<key>.<ext>.
func (c *ImageClient) Generate(ctx context.Context, key, prompt, stagingDir string) (string, error) {
	const op = "image generate"
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%s: api key required", op)
	}
	if c.cfg.BaseURL == "" {
		return "", fmt.Errorf("%s: base url required", op)
	}
	payload := imageRequest{Model: c.cfg.Model, Prompt: strings.TrimSpace(prompt), Size: c.cfg.Size, N: 1}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var data []byte
	err := c.withRetry(ctx, op, func() error {
		body, err := c.postJSON(ctx, op, c.cfg.BaseURL, headers, payload)
		if err != nil {
			return err
		}
		var parsed imageResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
		if len(parsed.Data) == 0 {
			return &retryableError{err: fmt.Errorf("%s: empty data", op)}
		}
		first := parsed.Data[0]
		switch {
		case first.B64JSON != "":
			decoded, err := base64.StdEncoding.DecodeString(first.B64JSON)
			if err != nil {
				return fmt.Errorf("%s: decode image: %w", op, err)
			}
			data = decoded
		case first.URL != "":
			fetched, err := c.get(ctx, op, first.URL)
			if err != nil {
				return err
			}
			data = fetched
		default:
			return &retryableError{err: fmt.Errorf("%s: response carried no image", op)}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return stage(stagingDir, key, data, ".png")
}

// SoundConfig captures the optional sound endpoint settings.
type SoundConfig struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// SoundClient calls a text-to-sound-effect endpoint that replies with audio bytes.
type SoundClient struct {
	cfg SoundConfig
	transport
}

// NewSoundClient constructs a sound client.
func NewSoundClient(cfg SoundConfig, opts ...Option) *SoundClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	return &SoundClient{cfg: cfg, transport: newTransport(cfg.TimeoutSeconds, opts)}
}

// Generate renders prompt and writes the audio to stagingDir/<key>.<ext>.
func (c *SoundClient) Generate(ctx context.Context, key, prompt, stagingDir string) (string, error) {
	const op = "sound generate"
	if c.cfg.BaseURL == "" {
		return "", fmt.Errorf("%s: base url required", op)
	}
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
		headers["xi-api-key"] = c.cfg.APIKey
	}
	var data []byte
	err := c.withRetry(ctx, op, func() error {
		body, err := c.postJSON(ctx, op, c.cfg.BaseURL, headers, map[string]string{"text": strings.TrimSpace(prompt)})
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return &retryableError{err: errors.New(op + ": empty audio")}
		}
		data = body
		return nil
	})
	if err != nil {
		return "", err
	}
	return stage(stagingDir, key, data, ".mp3")
}

// stage writes data under dir using an extension sniffed from the content.
func stage(dir, key string, data []byte, fallback string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	path := filepath.Join(dir, key+sniffExtension(data, fallback))
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("stage %s: %w", key, err)
	}
	return path, nil
}

func sniffExtension(data []byte, fallback string) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "audio/mpeg":
		return ".mp3"
	case "application/ogg", "audio/ogg":
		return ".ogg"
	case "audio/wave", "audio/wav":
		return ".wav"
	}
	if len(data) > 4 && strings.HasPrefix(strings.TrimSpace(string(data[:min(len(data), 256)])), "<svg") {
		return ".svg"
	}
	return fallback
}

package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"landing/internal/config"
	"landing/internal/services"
)

const (
	maxPlannedAssets = 8
	maxPlannedSounds = 4
)

var plannedKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Service implements Collaborator against real providers.
type Service struct {
	llm    *LLMClient
	images *ImageClient
	sounds *SoundClient
}

// NewService wires the provider clients from configuration. Sounds are
// only generated when enabled.
func NewService(cfg *config.Config, opts ...Option) *Service {
	svc := &Service{
		llm: NewLLMClient(LLMConfig{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}, opts...),
		images: NewImageClient(ImageConfig{
			APIKey:         cfg.Images.APIKey,
			BaseURL:        cfg.Images.BaseURL,
			Model:          cfg.Images.Model,
			Size:           cfg.Images.Size,
			TimeoutSeconds: cfg.Images.TimeoutSeconds,
		}, opts...),
	}
	if cfg.Sounds.Enabled {
		svc.sounds = NewSoundClient(SoundConfig{
			APIKey:         cfg.Sounds.APIKey,
			BaseURL:        cfg.Sounds.BaseURL,
			TimeoutSeconds: cfg.Sounds.TimeoutSeconds,
		}, opts...)
	}
	return svc
}

// HealthCheck verifies the LLM is reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.llm.HealthCheck(ctx)
}

// Analyze turns the prompt into a plan of assets and sounds.
func (s *Service) Analyze(ctx context.Context, req Request) (Analysis, error) {
	var analysis Analysis
	user := strings.TrimSpace(req.Prompt)
	if title := strings.TrimSpace(req.Title); title != "" {
		user = "Title: " + title + "\n\n" + user
	}
	content, err := s.llm.CompleteJSON(ctx, analysisPrompt, user)
	if err != nil {
		return analysis, classify("analyzing", "analyze", err)
	}
	if err := DecodeLLMJSON(content, &analysis); err != nil {
		return analysis, services.Wrap(services.ErrExternalTool, "analyzing", "parse", "analysis payload", err)
	}
	analysis.Raw = json.RawMessage(sanitizeJSONPayload(content))
	analysis.Assets = dedupeAssets(analysis.Assets, maxPlannedAssets)
	if s.sounds == nil {
		analysis.Sounds = nil
	} else {
		analysis.Sounds = dedupeSounds(analysis.Sounds, maxPlannedSounds)
	}
	if strings.TrimSpace(analysis.Title) == "" {
		analysis.Title = strings.TrimSpace(req.Title)
	}
	return analysis, nil
}

// Palette picks colours and fonts for the analysed plan.
func (s *Service) Palette(ctx context.Context, req Request, analysis Analysis) (Palette, error) {
	var palette Palette
	user := fmt.Sprintf("Title: %s\nSummary: %s\nStyle: %s\nRequest: %s",
		analysis.Title, analysis.Summary, analysis.Style, strings.TrimSpace(req.Prompt))
	content, err := s.llm.CompleteJSON(ctx, palettePrompt, user)
	if err != nil {
		return palette, classify("analyzing", "palette", err)
	}
	if err := DecodeLLMJSON(content, &palette); err != nil {
		return palette, services.Wrap(services.ErrExternalTool, "analyzing", "parse", "palette payload", err)
	}
	palette.Raw = json.RawMessage(sanitizeJSONPayload(content))
	return palette, nil
}

// Asset renders one image into stagingDir.
func (s *Service) Asset(ctx context.Context, spec AssetSpec, stagingDir string) (string, error) {
	path, err := s.images.Generate(ctx, spec.Key, spec.Prompt, stagingDir)
	if err != nil {
		return "", classify("generating_assets", "image "+spec.Key, err)
	}
	return path, nil
}

// Sound renders one sound effect into stagingDir.
func (s *Service) Sound(ctx context.Context, spec SoundSpec, stagingDir string) (string, error) {
	if s.sounds == nil {
		return "", services.Wrap(services.ErrConfiguration, "generating_assets", "sound "+spec.Key, "sounds disabled", nil)
	}
	path, err := s.sounds.Generate(ctx, spec.Key, spec.Prompt, stagingDir)
	if err != nil {
		return "", classify("generating_assets", "sound "+spec.Key, err)
	}
	return path, nil
}

// Code writes the HTML document.
func (s *Service) Code(ctx context.Context, req CodeRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", strings.TrimSpace(req.Request.Prompt))
	fmt.Fprintf(&b, "Title: %s\nSummary: %s\nStyle: %s\n", req.Analysis.Title, req.Analysis.Summary, req.Analysis.Style)
	fmt.Fprintf(&b, "Colors: %s\nFonts: %s\n", strings.Join(req.Palette.Colors, ", "), strings.Join(req.Palette.Fonts, ", "))
	fmt.Fprintf(&b, "Image keys: %s\n", strings.Join(req.Assets, ", "))
	fmt.Fprintf(&b, "Sound keys: %s\n", strings.Join(req.Sounds, ", "))

	content, err := s.llm.CompleteText(ctx, codePrompt, b.String())
	if err != nil {
		return "", classify("generating_code", "code", err)
	}
	html := stripCodeFence(content)
	if !strings.Contains(strings.ToLower(html), "<html") && !strings.Contains(strings.ToLower(html), "<body") {
		return "", services.Wrap(services.ErrExternalTool, "generating_code", "code", "response is not an html document", nil)
	}
	return html, nil
}

// classify tags provider errors so the runner can report a stable reason.
func classify(stage, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, stage, op, "provider call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrTransient, stage, op, "cancelled", err)
	}
	return services.Wrap(services.ErrExternalTool, stage, op, "provider call failed", err)
}

func dedupeAssets(in []AssetSpec, limit int) []AssetSpec {
	seen := make(map[string]struct{}, len(in))
	out := make([]AssetSpec, 0, len(in))
	for _, spec := range in {
		spec.Key = strings.TrimSpace(spec.Key)
		if !plannedKeyPattern.MatchString(spec.Key) || strings.TrimSpace(spec.Prompt) == "" {
			continue
		}
		if _, dup := seen[spec.Key]; dup {
			continue
		}
		seen[spec.Key] = struct{}{}
		out = append(out, spec)
		if len(out) == limit {
			break
		}
	}
	return out
}

func dedupeSounds(in []SoundSpec, limit int) []SoundSpec {
	assets := make([]AssetSpec, 0, len(in))
	for _, s := range in {
		assets = append(assets, AssetSpec(s))
	}
	kept := dedupeAssets(assets, limit)
	out := make([]SoundSpec, 0, len(kept))
	for _, a := range kept {
		out = append(out, SoundSpec(a))
	}
	return out
}

package generation

import (
	"context"
	"encoding/json"
)

// Request is the user input that starts a landing.
type Request struct {
	Prompt string
	Title  string
}

// AssetSpec describes one image the page needs. Key is the short
// identifier the generated HTML references as assets/<key>.
type AssetSpec struct {
	Key    string `json:"key"`
	Prompt string `json:"prompt"`
}

// SoundSpec describes one sound effect, referenced as sounds/<key>.
type SoundSpec struct {
	Key    string `json:"key"`
	Prompt string `json:"prompt"`
}

// Analysis is the structured plan produced from the user prompt.
type Analysis struct {
	Title   string          `json:"title"`
	Summary string          `json:"summary"`
	Style   string          `json:"style"`
	Assets  []AssetSpec     `json:"assets"`
	Sounds  []SoundSpec     `json:"sounds"`
	Raw     json.RawMessage `json:"-"`
}

// Palette is the colour and type selection for the page.
type Palette struct {
	Colors []string        `json:"colors"`
	Fonts  []string        `json:"fonts"`
	Mood   string          `json:"mood"`
	Raw    json.RawMessage `json:"-"`
}

// CodeRequest carries everything the code phase needs to write the page.
type CodeRequest struct {
	Request  Request
	Analysis Analysis
	Palette  Palette
	Assets   []string
	Sounds   []string
}

// Collaborator is the external generation surface used by a pipeline run.
// Asset and Sound write the generated file under stagingDir and return its path.
type Collaborator interface {
	Analyze(ctx context.Context, req Request) (Analysis, error)
	Palette(ctx context.Context, req Request, analysis Analysis) (Palette, error)
	Asset(ctx context.Context, spec AssetSpec, stagingDir string) (string, error)
	Sound(ctx context.Context, spec SoundSpec, stagingDir string) (string, error)
	Code(ctx context.Context, req CodeRequest) (string, error)
}

package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"landing/internal/generation"
)

// PNGHeader is enough of a PNG for content sniffing and extension checks.
var PNGHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// Collaborator is a deterministic generation.Collaborator that plans a single
// "hero" image and returns a page referencing it.
type Collaborator struct{}

// Analyze returns a fixed one-asset plan.
func (Collaborator) Analyze(_ context.Context, req generation.Request) (generation.Analysis, error) {
	return generation.Analysis{
		Title:  "Test Landing",
		Assets: []generation.AssetSpec{{Key: "hero", Prompt: req.Prompt}},
		Raw:    json.RawMessage(`{"title":"Test Landing"}`),
	}, nil
}

// Palette returns a fixed palette.
func (Collaborator) Palette(context.Context, generation.Request, generation.Analysis) (generation.Palette, error) {
	return generation.Palette{Colors: []string{"#000000"}, Raw: json.RawMessage(`{"colors":["#000000"]}`)}, nil
}

// Asset writes a tiny PNG into dir.
func (Collaborator) Asset(_ context.Context, spec generation.AssetSpec, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, spec.Key+".png")
	return path, os.WriteFile(path, PNGHeader, 0o644)
}

// Sound is never planned.
func (Collaborator) Sound(context.Context, generation.SoundSpec, string) (string, error) {
	return "", os.ErrNotExist
}

// Code returns a page that references the hero image.
func (Collaborator) Code(context.Context, generation.CodeRequest) (string, error) {
	return `<html><head><title>t</title></head><body><img src="assets/hero"></body></html>`, nil
}

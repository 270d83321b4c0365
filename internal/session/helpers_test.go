package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"landing/internal/api"
	"landing/internal/artifact"
	"landing/internal/generation"
	"landing/internal/logging"
	"landing/internal/records"
	"landing/internal/testsupport"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// scriptedCollaborator returns a fixed plan and can fail, panic, or block at
// a named step.
type scriptedCollaborator struct {
	failAt    string
	panicAt   string
	blockAt   string
	release   chan struct{}
	assets    []generation.AssetSpec
	assetErrs map[string]error
	assetWait time.Duration
	reached   chan string
}

func newScripted() *scriptedCollaborator {
	return &scriptedCollaborator{
		assets: []generation.AssetSpec{
			{Key: "wheel", Prompt: "a prize wheel"},
			{Key: "wheelFrame", Prompt: "an ornate frame"},
		},
		release: make(chan struct{}),
		reached: make(chan string, 16),
	}
}

func (c *scriptedCollaborator) hook(ctx context.Context, step string) error {
	if c.panicAt == step {
		panic("scripted panic in " + step)
	}
	if c.blockAt == step {
		c.reached <- step
		select {
		case <-c.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.failAt == step {
		return errors.New("scripted failure in " + step)
	}
	return nil
}

func (c *scriptedCollaborator) Analyze(ctx context.Context, req generation.Request) (generation.Analysis, error) {
	if err := c.hook(ctx, "analyze"); err != nil {
		return generation.Analysis{}, err
	}
	return generation.Analysis{
		Title:  "Spin to Win",
		Assets: c.assets,
		Raw:    json.RawMessage(`{"title":"Spin to Win"}`),
	}, nil
}

func (c *scriptedCollaborator) Palette(ctx context.Context, req generation.Request, a generation.Analysis) (generation.Palette, error) {
	if err := c.hook(ctx, "palette"); err != nil {
		return generation.Palette{}, err
	}
	return generation.Palette{Colors: []string{"#112233"}, Raw: json.RawMessage(`{"colors":["#112233"]}`)}, nil
}

func (c *scriptedCollaborator) Asset(ctx context.Context, spec generation.AssetSpec, dir string) (string, error) {
	if err := c.hook(ctx, "asset"); err != nil {
		return "", err
	}
	if c.assetWait > 0 {
		time.Sleep(c.assetWait)
	}
	if err := c.assetErrs[spec.Key]; err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, spec.Key+".png")
	return path, os.WriteFile(path, pngHeader, 0o644)
}

func (c *scriptedCollaborator) Sound(ctx context.Context, spec generation.SoundSpec, dir string) (string, error) {
	return "", errors.New("sounds disabled")
}

func (c *scriptedCollaborator) Code(ctx context.Context, req generation.CodeRequest) (string, error) {
	if err := c.hook(ctx, "code"); err != nil {
		return "", err
	}
	return `<html><body><img src="assets/wheel.png"><img src="assets/wheelFrame.png"></body></html>`, nil
}

// recordingHub captures broadcasts per channel.
type recordingHub struct {
	mu     sync.Mutex
	events map[string][]api.Event
	first  time.Time
}

func newRecordingHub() *recordingHub {
	return &recordingHub{events: make(map[string][]api.Event)}
}

func (h *recordingHub) Broadcast(channelID string, event any) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.first.IsZero() {
		h.first = time.Now()
	}
	h.events[channelID] = append(h.events[channelID], event.(api.Event))
	return 1, nil
}

func (h *recordingHub) on(channelID string) []api.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]api.Event(nil), h.events[channelID]...)
}

type failingBundles struct{}

func (failingBundles) Assemble(context.Context, artifact.AssembleRequest) (*artifact.Bundle, error) {
	return nil, errors.New("disk full")
}

func (failingBundles) Delete(string, int64) (bool, error) { return false, nil }

// racingBundles runs beforeWrite ahead of the real assembly, so a delete can
// land while the bundle is being written.
type racingBundles struct {
	*artifact.Store
	beforeWrite func(req artifact.AssembleRequest)
}

func (b racingBundles) Assemble(ctx context.Context, req artifact.AssembleRequest) (*artifact.Bundle, error) {
	b.beforeWrite(req)
	return b.Store.Assemble(ctx, req)
}

type fixture struct {
	runner  *Runner
	hub     *recordingHub
	bundles *artifact.Store
	records *records.Store
	status  *StatusService
}

func newFixture(t *testing.T, collab generation.Collaborator) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	bundles := testsupport.MustArtifactStore(t, cfg)
	recs := testsupport.MustOpenStore(t, cfg)
	h := newRecordingHub()
	registry := NewRegistry(logging.NewNop())
	runner := NewRunner(cfg, Deps{
		Registry:     registry,
		Collaborator: collab,
		Bundles:      bundles,
		Records:      recs,
		Hub:          h,
		Logger:       logging.NewNop(),
	})
	t.Cleanup(runner.Wait)
	return &fixture{
		runner:  runner,
		hub:     h,
		bundles: bundles,
		records: recs,
		status:  NewStatusService(registry, recs, bundles),
	}
}

func terminalEvents(events []api.Event) []api.Event {
	var out []api.Event
	for _, evt := range events {
		if evt.Terminal() {
			out = append(out, evt)
		}
	}
	return out
}

func assertMonotonic(t *testing.T, events []api.Event) {
	t.Helper()
	last := -1
	for _, evt := range events {
		p := evt.ProgressValue()
		if p < 0 {
			continue
		}
		if p < last {
			t.Fatalf("progress regressed from %d to %d (%s %q)", last, p, evt.Type, evt.Message)
		}
		last = p
	}
}

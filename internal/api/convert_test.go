package api

import (
	"testing"
	"time"

	"landing/internal/artifact"
	"landing/internal/records"
)

func TestFromBundle(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := artifact.Bundle{
		LandingID: "0b6d7a4e-1f2c-4c8e-9d3a-5b7e2f1a9c04",
		OwnerID:   7,
		Metadata: artifact.Metadata{
			Title:       "Spin to win",
			Assets:      []string{"wheel.webp"},
			CreatedAt:   created,
			CompletedAt: created.Add(42 * time.Second),
			DurationMs:  42000,
		},
	}
	dto := FromBundle(b)
	if dto.LandingID != b.LandingID || dto.OwnerID != 7 {
		t.Fatalf("unexpected identity: %+v", dto)
	}
	if dto.Sounds == nil || len(dto.Sounds) != 0 {
		t.Fatalf("expected empty sounds slice, got %#v", dto.Sounds)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected created timestamp %q", dto.CreatedAt)
	}
	if dto.PreviewURL != "/api/landings/0b6d7a4e-1f2c-4c8e-9d3a-5b7e2f1a9c04/preview" {
		t.Fatalf("unexpected preview url %q", dto.PreviewURL)
	}
}

func TestFromRecordNil(t *testing.T) {
	dto := FromRecord(nil)
	if dto.Assets == nil || dto.Sounds == nil {
		t.Fatal("expected non-nil slices")
	}
	rec := &records.Landing{LandingID: "abc", OwnerID: 3, Title: "t"}
	if got := FromRecord(rec); got.Title != "t" || got.CompletedAt != "" {
		t.Fatalf("unexpected dto %+v", got)
	}
}

func TestEventTerminal(t *testing.T) {
	if !CompleteEvent("x", nil, "", time.Second).Terminal() {
		t.Fatal("complete should be terminal")
	}
	if !ErrorEvent("x", "boom", "TIMEOUT").Terminal() {
		t.Fatal("error should be terminal")
	}
	if ProgressEvent("x", "analyzing", "", 0).ProgressValue() != 0 {
		t.Fatal("expected explicit zero progress")
	}
	if ToolUseEvent("x", "analysis", "Analyzing", ToolRunning).ProgressValue() != -1 {
		t.Fatal("expected no progress on tool event")
	}
}

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"landing/internal/logging"
	"landing/internal/services"
)

func TestNewWritesToEveryOutputOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "landing-run.log")

	logger, err := logging.New(logging.Options{
		Level:       "warning",
		Format:      "json",
		OutputPaths: []string{logPath, " " + logPath + " "},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("filtered out")
	logger.Warn("daemon degraded", logging.String("bind", "127.0.0.1:0"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "filtered out") {
		t.Fatalf("info line should be below the warn threshold: %q", content)
	}
	if n := strings.Count(string(content), "daemon degraded"); n != 1 {
		t.Fatalf("expected exactly one warn line, got %d in %q", n, content)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestConsoleHeaderIncludesLandingAndStage(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, "console", slog.LevelInfo, false)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "session")
	logger.Info("phase started",
		logging.String(logging.FieldLandingID, "abc-123"),
		logging.String(logging.FieldStage, "analyzing"),
		logging.Int("progress", 10),
	)

	out := buf.String()
	for _, want := range []string{"INFO [session] Landing abc-123 (analyzing) - phase started", "    - progress: 10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestConsoleSuppressesRepeatedInfoFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, "console", slog.LevelInfo, false)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	logger = logger.With(logging.String(logging.FieldLandingID, "abc"))
	logger.Info("first", logging.String("model", "m1"))
	logger.Info("second", logging.String("model", "m1"))

	if got := strings.Count(buf.String(), "model: m1"); got != 1 {
		t.Fatalf("expected repeated field once, got %d in %q", got, buf.String())
	}
}

func TestJSONHandlerUsesStableKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, "json", slog.LevelInfo, false)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	logger.Warn("asset failed", logging.String(logging.FieldLandingID, "abc"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("unexpected level %v", entry["level"])
	}
	if _, ok := entry["ts"].(string); !ok {
		t.Fatalf("expected ts string, got %v", entry["ts"])
	}
	if entry[logging.FieldLandingID] != "abc" {
		t.Fatalf("missing landing id: %v", entry)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.NewWithWriter(&buf, "json", slog.LevelDebug, false)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}

	ctx := services.WithLandingID(context.Background(), "land-1")
	ctx = services.WithOwnerID(ctx, 42)
	ctx = services.WithStage(ctx, "assembling")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, base).Info("context fields")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry[logging.FieldLandingID] != "land-1" || entry[logging.FieldStage] != "assembling" {
		t.Fatalf("missing context fields: %v", entry)
	}
	if entry[logging.FieldOwnerID] != float64(42) {
		t.Fatalf("unexpected owner: %v", entry[logging.FieldOwnerID])
	}
	if entry[logging.FieldCorrelationID] != "req-9" {
		t.Fatalf("unexpected correlation id: %v", entry[logging.FieldCorrelationID])
	}
}

func TestArgsFeedsWith(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.NewWithWriter(&buf, "json", slog.LevelInfo, false)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	base.With(logging.Args(logging.String("bind", "127.0.0.1:0"), logging.Int("workers", 3))...).Info("daemon up")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["bind"] != "127.0.0.1:0" || entry["workers"] != float64(3) {
		t.Fatalf("args not attached: %v", entry)
	}
	if got := logging.Args(); len(got) != 0 {
		t.Fatalf("empty args = %v", got)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewWithWriter(&buf, "json", slog.LevelInfo, false)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	logging.WarnWithContext(logger, "asset skipped", "asset_failed", logging.String(logging.FieldImpact, "placeholder stays"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry[logging.FieldEventType] != "asset_failed" {
		t.Fatalf("unexpected event type: %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
	if entry[logging.FieldImpact] != "placeholder stays" {
		t.Fatalf("caller impact overwritten: %v", entry[logging.FieldImpact])
	}
}

func TestCleanupOldLogsRemovesExpired(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "landing-old.log")
	newPath := filepath.Join(dir, "landing-new.log")
	keepPath := filepath.Join(dir, "landing-current.log")
	for _, p := range []string{oldPath, newPath, keepPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{oldPath, keepPath} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 3, logging.RetentionTarget{Dir: dir, Pattern: "landing-*.log", Exclude: []string{keepPath}})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, err=%v", err)
	}
	for _, p := range []string{newPath, keepPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
}

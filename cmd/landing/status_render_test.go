package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"landing/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestCheckLines(t *testing.T) {
	lines := checkLines([]api.CheckResult{
		{Name: "Artifact directory", Passed: true},
		{Name: "LLM", Passed: false, Detail: "unauthorized"},
	}, false)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] passed") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] unauthorized") {
		t.Fatalf("unexpected second line %q", lines[1])
	}

	empty := checkLines(nil, false)
	if len(empty) != 1 || !strings.Contains(empty[0], "not run yet") {
		t.Fatalf("unexpected empty rendering %q", empty)
	}
}

func TestSessionRowsSkipsZeroCounts(t *testing.T) {
	rows := sessionRows(map[string]int{"pending": 0, "analyzing": 2, "complete": 1})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v", rows)
	}
	if rows[0][0] != "analyzing" || rows[0][1] != "2" || rows[1][0] != "complete" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestRenderDaemonStatusIncludesSessionsTable(t *testing.T) {
	var buf bytes.Buffer
	renderDaemonStatus(&buf, &api.DaemonStatus{
		Running:       true,
		PID:           99,
		SessionStates: map[string]int{"generating_code": 3},
		Hub:           api.HubStats{Connections: 2, Channels: 1},
	}, "http://127.0.0.1:7590", false)
	out := buf.String()
	requireContains(t, out, "Running (pid 99)")
	requireContains(t, out, "2 across 1 channels")
	requireContains(t, out, "generating_code")
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	requireContains(t, out, "only")
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestTruncateText(t *testing.T) {
	if got := truncateText("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncateText("a very long prompt", 6); got != "a ver…" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{0: "0 B", 1023: "1023 B", 1536: "1.5 KiB", 5 << 20: "5.0 MiB"}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

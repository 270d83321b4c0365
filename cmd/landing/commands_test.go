package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "token required: yes")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init without --overwrite to refuse an existing file")
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[OK] Running")
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "No active sessions")

	out, _, err = runCLI(t, env, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"running": true`)
}

func TestStatusCommandDaemonOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addr = "127.0.0.1:1"

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[ERROR] Not running")
}

func TestLandingLifecycleCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "--owner", "42", "create", "--wait", "a", "bakery", "in", "Lisbon")
	if err != nil {
		t.Fatalf("create: %v\n%s", err, out)
	}
	id := landingIDFrom(t, out)
	requireContains(t, out, "100% complete")
	requireContains(t, out, "/api/landings/"+id+"/preview")

	out, _, err = runCLI(t, env, "--owner", "42", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "Test Landing")

	out, _, err = runCLI(t, env, "--owner", "42", "show", id)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "State:     complete")
	requireContains(t, out, "hero")

	out, _, err = runCLI(t, env, "--owner", "7", "list")
	if err != nil {
		t.Fatalf("list other owner: %v", err)
	}
	requireContains(t, out, "No landings found")

	archive := filepath.Join(t.TempDir(), "out.zip")
	out, _, err = runCLI(t, env, "--owner", "42", "zip", id, "-o", archive)
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	requireContains(t, out, "Wrote "+archive)
	data, err := os.ReadFile(archive)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if !strings.HasPrefix(string(data), "PK") {
		t.Fatalf("archive does not look like a zip: %q", data[:min(len(data), 8)])
	}

	out, _, err = runCLI(t, env, "--owner", "42", "delete", id)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Deleted landing "+id)

	out, _, err = runCLI(t, env, "--owner", "42", "delete", id)
	if err == nil {
		t.Fatal("expected deleting a missing landing to fail")
	}
	requireContains(t, out, "not found")
}

func TestZipMissingLandingLeavesNoFile(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	archive := filepath.Join(dir, "missing.zip")

	if _, _, err := runCLI(t, env, "--owner", "42", "zip", "0f0e0d0c-0000-4000-8000-000000000000", "-o", archive); err == nil {
		t.Fatal("expected zip of a missing landing to fail")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files left behind, found %d", len(entries))
	}
}

func TestOwnerResolution(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env, "list")
	if err == nil || !strings.Contains(err.Error(), "owner id required") {
		t.Fatalf("expected owner error, got %v", err)
	}

	t.Setenv(ownerEnv, "42")
	out, _, err := runCLI(t, env, "list")
	if err != nil {
		t.Fatalf("list with env owner: %v", err)
	}
	requireContains(t, out, "No landings found")

	t.Setenv(ownerEnv, "abc")
	if _, _, err := runCLI(t, env, "list"); err == nil {
		t.Fatal("expected invalid env owner to fail")
	}
}

func TestWrongTokenIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg := *env.cfg
	cfg.Paths.APIToken = "wrong"
	writeTestConfig(t, env.configPath, &cfg)

	_, _, err := runCLI(t, env, "--owner", "42", "list")
	if err == nil || !strings.Contains(err.Error(), "UNAUTHORIZED") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestLogsCommandFiltersByLanding(t *testing.T) {
	env := setupCLITestEnv(t)
	content := strings.Join([]string{
		`{"level":"info","msg":"phase started","landing_id":"abc"}`,
		`{"level":"info","msg":"phase started","landing_id":"def"}`,
		`{"level":"warn","msg":"asset failed","landing_id":"abc"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.LogDir, "landing.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, env, "logs", "--landing", "abc")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, `"def"`) {
		t.Fatalf("unexpected foreign landing line in %q", out)
	}
	requireContains(t, out, "asset failed")

	out, _, err = runCLI(t, env, "logs", "-n", "1")
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one line, got %q", out)
	}
}

func TestStopReportsNotRunning(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addr = "127.0.0.1:1"

	out, _, err := runCLI(t, env, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestStartReportsAlreadyRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "start")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestTestNotifyCommand(t *testing.T) {
	t.Setenv("LANDING_NTFY_TOPIC", "")
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify without topic: %v", err)
	}
	requireContains(t, out, "Notifications not configured")

	var hits atomic.Int32
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body.Store(string(data))
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	if _, err := f.WriteString("\n[notifications]\nntfy_topic = \"" + srv.URL + "\"\n"); err != nil {
		t.Fatalf("append config: %v", err)
	}
	f.Close()

	out, _, err = runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if hits.Load() != 1 {
		t.Fatalf("expected one ntfy request, got %d", hits.Load())
	}
	if got, _ := body.Load().(string); !strings.Contains(got, "Notification system test") {
		t.Fatalf("unexpected ntfy body %q", got)
	}
}

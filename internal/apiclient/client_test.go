package apiclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"landing/internal/api"
	"landing/internal/apiclient"
)

type fakeDaemon struct {
	t        *testing.T
	lastAuth string
	lastOwn  string
	lastPath string
}

func (f *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lastAuth = r.Header.Get("Authorization")
	f.lastOwn = r.Header.Get("X-Owner-Id")
	f.lastPath = r.URL.EscapedPath()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/status":
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 7, ActiveSessions: 2})
	case r.URL.Path == "/api/landings" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(api.LandingListResponse{Landings: []api.LandingSummary{{LandingID: "a", Title: "Alpha"}}})
	case r.URL.Path == "/api/landings" && r.Method == http.MethodPost:
		var req api.CreateLandingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "prompt is required", Code: "INVALID_INPUT"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.CreateLandingResponse{LandingID: "new", ChannelID: "landing:new", State: "queued"})
	case r.URL.Path == "/api/landings/a" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(api.LandingResponse{Landing: api.LandingSummary{LandingID: "a", Title: "Alpha"}})
	case r.URL.Path == "/api/landings/a" && r.Method == http.MethodDelete:
		_ = json.NewEncoder(w).Encode(api.DeleteResponse{Deleted: true})
	case r.URL.Path == "/api/landings/a/status":
		_ = json.NewEncoder(w).Encode(api.LandingStatus{LandingID: "a", State: "complete", Progress: 100, Source: api.StatusSourceRecord})
	case r.URL.Path == "/api/landings/gone/status":
		w.WriteHeader(http.StatusGone)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "session expired", Code: "SESSION_EXPIRED"})
	case r.URL.Path == "/api/landings/a/zip":
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK\x03\x04zipdata"))
	case r.URL.Path == "/api/landings/broken":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "landing not found", Code: "NOT_FOUND"})
	}
}

func newClient(t *testing.T) (*apiclient.Client, *fakeDaemon) {
	t.Helper()
	fake := &fakeDaemon{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client, err := apiclient.New(srv.URL, "secret", apiclient.WithOwner(42))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, fake
}

func TestClientSendsCredentials(t *testing.T) {
	client, fake := newClient(t)
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.PID != 7 || status.ActiveSessions != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
	if fake.lastAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", fake.lastAuth)
	}
	if fake.lastOwn != "42" {
		t.Fatalf("expected owner header 42, got %q", fake.lastOwn)
	}
}

func TestClientLandingOperations(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	list, err := client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Alpha" {
		t.Fatalf("unexpected list %+v", list)
	}

	shown, err := client.Show(ctx, "a")
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if shown.LandingID != "a" {
		t.Fatalf("unexpected landing %+v", shown)
	}

	status, err := client.LandingStatus(ctx, "a")
	if err != nil {
		t.Fatalf("LandingStatus: %v", err)
	}
	if status.State != "complete" || status.Source != api.StatusSourceRecord {
		t.Fatalf("unexpected landing status %+v", status)
	}

	created, err := client.Create(ctx, api.CreateLandingRequest{Prompt: "a bakery"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ChannelID != "landing:new" {
		t.Fatalf("unexpected create response %+v", created)
	}

	var buf bytes.Buffer
	n, err := client.Zip(ctx, "a", &buf)
	if err != nil {
		t.Fatalf("Zip: %v", err)
	}
	if n != int64(buf.Len()) || !strings.HasPrefix(buf.String(), "PK") {
		t.Fatalf("unexpected archive bytes %q (n=%d)", buf.String(), n)
	}

	deleted, err := client.Delete(ctx, "a")
	if err != nil || !deleted {
		t.Fatalf("Delete a: deleted=%v err=%v", deleted, err)
	}
	deleted, err = client.Delete(ctx, "missing")
	if err != nil || deleted {
		t.Fatalf("Delete missing: deleted=%v err=%v", deleted, err)
	}
}

func TestClientErrors(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	_, err := client.Create(ctx, api.CreateLandingRequest{})
	var apiErr *apiclient.Error
	if !asError(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Code != "INVALID_INPUT" {
		t.Fatalf("expected INVALID_INPUT 400, got %v", err)
	}

	_, err = client.LandingStatus(ctx, "gone")
	if !apiclient.IsExpired(err) {
		t.Fatalf("expected expired error, got %v", err)
	}

	_, err = client.Show(ctx, "nope")
	if !apiclient.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = client.Show(ctx, "broken")
	if !asError(err, &apiErr) || apiErr.Status != http.StatusInternalServerError || apiErr.Message != "boom" {
		t.Fatalf("expected plain-text 500, got %v", err)
	}
}

func TestNewNormalizesAddress(t *testing.T) {
	tests := []struct {
		addr string
		want string
		ok   bool
	}{
		{addr: "127.0.0.1:7590", want: "http://127.0.0.1:7590", ok: true},
		{addr: "0.0.0.0:7590", want: "http://127.0.0.1:7590", ok: true},
		{addr: ":7590", want: "http://127.0.0.1:7590", ok: true},
		{addr: "https://landing.example/", want: "https://landing.example", ok: true},
		{addr: "", ok: false},
		{addr: "no-port", ok: false},
		{addr: "ftp://host", ok: false},
	}
	for _, tt := range tests {
		client, err := apiclient.New(tt.addr, "")
		if !tt.ok {
			if err == nil {
				t.Fatalf("New(%q) expected error", tt.addr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%q): %v", tt.addr, err)
		}
		if client.BaseURL() != tt.want {
			t.Fatalf("New(%q) base = %q, want %q", tt.addr, client.BaseURL(), tt.want)
		}
	}
}

func asError(err error, target **apiclient.Error) bool {
	return errors.As(err, target)
}

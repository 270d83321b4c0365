package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"landing/internal/logging"
	"landing/internal/services"
)

func newTestRegistry(t *testing.T) (*Registry, *time.Time) {
	t.Helper()
	r := NewRegistry(logging.NewNop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRegistryCreateValidates(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Create(0, Input{Prompt: "x"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for owner 0, got %v", err)
	}
	if _, err := r.Create(7, Input{Prompt: "   "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank prompt, got %v", err)
	}
	sess, err := r.Create(7, Input{Prompt: " spin wheel ", Title: " Promo "})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.State != StatePending || sess.Progress != 0 {
		t.Fatalf("unexpected initial session %+v", sess)
	}
	if sess.Prompt != "spin wheel" || sess.Title != "Promo" {
		t.Fatalf("inputs not trimmed: %+v", sess)
	}
}

func TestRegistryCreateRetriesCollidingIDs(t *testing.T) {
	r, _ := newTestRegistry(t)
	ids := []string{"dup", "dup", "fresh"}
	r.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	first, err := r.Create(1, Input{Prompt: "a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := r.Create(1, Input{Prompt: "b"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID != "dup" || second.ID != "fresh" {
		t.Fatalf("ids = %q, %q", first.ID, second.ID)
	}
}

func TestRegistryUniqueIDsUnderConcurrency(t *testing.T) {
	r := NewRegistry(logging.NewNop())
	const n = 200
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := r.Create(3, Input{Prompt: "p"})
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			ids <- sess.ID
		}()
	}
	wg.Wait()
	close(ids)
	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if r.Len() != n {
		t.Fatalf("Len = %d, want %d", r.Len(), n)
	}
}

func TestRegistryAdvanceNeverRegresses(t *testing.T) {
	r, _ := newTestRegistry(t)
	sess, _ := r.Create(1, Input{Prompt: "p"})

	snap, err := r.Advance(sess.ID, StateGeneratingAssets, 40, "halfway")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if snap.Progress != 40 {
		t.Fatalf("progress = %d", snap.Progress)
	}
	snap, err = r.Advance(sess.ID, StateGeneratingAssets, 30, "late worker")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if snap.Progress != 40 {
		t.Fatalf("progress regressed to %d", snap.Progress)
	}
	if snap.Message != "late worker" {
		t.Fatalf("message = %q", snap.Message)
	}
	snap, _ = r.Advance(sess.ID, StateGeneratingAssets, 250, "")
	if snap.Progress != 100 {
		t.Fatalf("progress not clamped: %d", snap.Progress)
	}
}

func TestRegistryTransitions(t *testing.T) {
	r, _ := newTestRegistry(t)
	sess, _ := r.Create(1, Input{Prompt: "p"})

	if _, err := r.Advance(sess.ID, StateGeneratingCode, 75, ""); err != nil {
		t.Fatalf("forward jump rejected: %v", err)
	}
	if _, err := r.Advance(sess.ID, StateAnalyzing, 80, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected backward transition to fail, got %v", err)
	}
	if _, err := r.Complete(sess.ID, "done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := r.Fail(sess.ID, errors.New("late")); err == nil {
		t.Fatal("expected fail after complete to be rejected")
	}
	if _, err := r.Advance(sess.ID, StateAssembling, 95, ""); err == nil {
		t.Fatal("expected advance after complete to be rejected")
	}
	got, _ := r.Get(sess.ID)
	if got.State != StateComplete || got.Progress != 100 {
		t.Fatalf("terminal session changed: %+v", got)
	}
}

func TestRegistryFailRecordsReason(t *testing.T) {
	r, _ := newTestRegistry(t)
	sess, _ := r.Create(1, Input{Prompt: "p"})
	cause := services.Wrap(services.ErrTimeout, "analyzing", "analysis", "exceeded 1s", nil)
	snap, err := r.Fail(sess.ID, cause)
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if snap.State != StateFailed || snap.ErrorCode != services.ReasonTimeout || snap.Error == "" {
		t.Fatalf("unexpected failed snapshot %+v", snap)
	}
	if _, err := r.Fail(sess.ID, cause); err == nil {
		t.Fatal("second Fail should be rejected")
	}
}

func TestRegistryMutateMissingSession(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Advance("gone", StateAnalyzing, 5, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if r.Delete("gone") {
		t.Fatal("Delete reported an unknown session")
	}
}

func TestRegistrySnapshotsAreIsolated(t *testing.T) {
	r, _ := newTestRegistry(t)
	sess, _ := r.Create(1, Input{Prompt: "p"})
	if _, err := r.Attach(sess.ID, json.RawMessage(`{"a":1}`), nil); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	snap, _ := r.Get(sess.ID)
	snap.Analysis[2] = 'X'
	snap.Progress = 99
	again, _ := r.Get(sess.ID)
	if string(again.Analysis) != `{"a":1}` || again.Progress != 0 {
		t.Fatalf("registry state leaked through snapshot: %+v", again)
	}
}

func TestRegistryReapOnlyIdleTerminal(t *testing.T) {
	r, now := newTestRegistry(t)
	running, _ := r.Create(1, Input{Prompt: "running"})
	done, _ := r.Create(1, Input{Prompt: "done"})
	failed, _ := r.Create(1, Input{Prompt: "failed"})
	if _, err := r.Complete(done.ID, "ok"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Fail(failed.ID, errors.New("boom")); err != nil {
		t.Fatal(err)
	}

	if n := r.Reap(time.Minute); n != 0 {
		t.Fatalf("reaped %d fresh sessions", n)
	}
	*now = now.Add(2 * time.Minute)
	if n := r.Reap(time.Minute); n != 2 {
		t.Fatalf("reaped %d, want 2", n)
	}
	if !r.Exists(running.ID) {
		t.Fatal("running session was evicted")
	}
	if r.Exists(done.ID) || r.Exists(failed.ID) {
		t.Fatal("terminal sessions were not evicted")
	}
}

func TestRegistryStateCounts(t *testing.T) {
	r, _ := newTestRegistry(t)
	a, _ := r.Create(1, Input{Prompt: "a"})
	r.Create(1, Input{Prompt: "b"})
	r.Advance(a.ID, StateAnalyzing, 5, "")
	counts := r.StateCounts()
	if counts["pending"] != 1 || counts["analyzing"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("Len after Clear = %d", r.Len())
	}
}

func TestStateLabelAndTransitions(t *testing.T) {
	if got := StateGeneratingAssets.Label(); got != "Generating Assets" {
		t.Fatalf("Label = %q", got)
	}
	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateAnalyzing, true},
		{StateAnalyzing, StateAnalyzing, true},
		{StateAssembling, StateGeneratingCode, false},
		{StateAnalyzing, StateFailed, true},
		{StateFailed, StateFailed, false},
		{StateComplete, StateFailed, false},
		{StatePending, State("bogus"), false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

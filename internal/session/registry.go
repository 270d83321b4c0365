package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"landing/internal/artifact"
	"landing/internal/logging"
	"landing/internal/services"
)

// Registry is the in-memory map of live jobs.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logging.NewComponentLogger(logger, "session-registry"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create inserts a pending session for ownerID under a fresh identifier.
func (r *Registry) Create(ownerID int64, in Input) (Session, error) {
	if err := artifact.ValidateOwnerID(ownerID); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return Session{}, services.Wrap(services.ErrValidation, "session", "create", "prompt is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.newID()
	for attempts := 1; ; attempts++ {
		if _, taken := r.sessions[id]; !taken {
			break
		}
		if attempts >= 5 {
			return Session{}, services.Wrap(services.ErrTransient, "session", "create", "could not allocate a unique id", nil)
		}
		id = r.newID()
	}
	now := r.now()
	s := &Session{
		ID:        id,
		OwnerID:   ownerID,
		ChatID:    strings.TrimSpace(in.ChatID),
		Title:     strings.TrimSpace(in.Title),
		Prompt:    strings.TrimSpace(in.Prompt),
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.sessions[id] = s
	return s.clone(), nil
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Exists reports whether id is still registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Advance moves a session to state and raises progress to at least
// progress. The stored progress is max(previous, progress) so concurrent
// sub-steps can never make it regress. The returned snapshot carries the
// value callers should report.
func (r *Registry) Advance(id string, state State, progress int, message string) (Session, error) {
	return r.mutate(id, func(s *Session) error {
		if !s.State.CanTransition(state) {
			return services.Wrap(services.ErrValidation, "session", "advance",
				fmt.Sprintf("invalid transition %s -> %s", s.State, state), nil)
		}
		s.State = state
		s.Progress = max(s.Progress, clampProgress(progress))
		if message = strings.TrimSpace(message); message != "" {
			s.Message = message
		}
		return nil
	})
}

// Attach stores collaborator output on the session. Nil values are ignored.
func (r *Registry) Attach(id string, analysis, palette json.RawMessage) (Session, error) {
	return r.mutate(id, func(s *Session) error {
		if s.State.Terminal() {
			return services.Wrap(services.ErrValidation, "session", "attach", "session already finished", nil)
		}
		if analysis != nil {
			s.Analysis = analysis
		}
		if palette != nil {
			s.Palette = palette
		}
		return nil
	})
}

// Complete marks a session finished at 100%.
func (r *Registry) Complete(id, message string) (Session, error) {
	return r.mutate(id, func(s *Session) error {
		if !s.State.CanTransition(StateComplete) {
			return services.Wrap(services.ErrValidation, "session", "complete",
				fmt.Sprintf("invalid transition %s -> complete", s.State), nil)
		}
		s.State = StateComplete
		s.Progress = 100
		s.Message = message
		return nil
	})
}

// Fail marks a session failed and records the cause.
func (r *Registry) Fail(id string, cause error) (Session, error) {
	return r.mutate(id, func(s *Session) error {
		if s.State.Terminal() {
			return services.Wrap(services.ErrValidation, "session", "fail", "session already finished", nil)
		}
		s.State = StateFailed
		s.Error = errorMessage(cause)
		s.ErrorCode = services.ReasonCode(cause)
		if s.ErrorCode == "" {
			s.ErrorCode = services.ReasonInternal
		}
		return nil
	})
}

// Delete removes a session. It reports whether one was registered.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Clear drops every session.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.sessions)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StateCounts returns how many sessions are in each state.
func (r *Registry) StateCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int)
	for _, s := range r.sessions {
		counts[string(s.State)]++
	}
	return counts
}

// Reap evicts terminal sessions that have been idle longer than ttl.
// Running sessions are never evicted.
func (r *Registry) Reap(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.State.Terminal() && s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// RunReaper calls Reap every interval until ctx is cancelled.
func (r *Registry) RunReaper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Reap(ttl); n > 0 {
				r.logger.Info("evicted idle sessions",
					logging.Int("evicted", n),
					logging.Int("remaining", r.Len()),
					logging.String(logging.FieldEventType, "session_reap"),
				)
			}
		}
	}
}

func (r *Registry) mutate(id string, fn func(*Session) error) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, errSessionGone
	}
	if err := fn(s); err != nil {
		return s.clone(), err
	}
	s.UpdatedAt = r.now()
	return s.clone(), nil
}

var errSessionGone = services.Wrap(services.ErrNotFound, "session", "lookup", "session is no longer registered", nil)

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}

func errorMessage(err error) string {
	if err == nil {
		return "generation failed"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "generation failed"
	}
	return msg
}

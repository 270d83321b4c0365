package session

import (
	"encoding/json"
	"slices"
	"time"
)

// Session is a snapshot of one generation job.
type Session struct {
	ID        string
	OwnerID   int64
	ChatID    string
	Title     string
	Prompt    string
	State     State
	Progress  int
	Message   string
	Analysis  json.RawMessage
	Palette   json.RawMessage
	Error     string
	ErrorCode string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) clone() Session {
	out := *s
	out.Analysis = slices.Clone(s.Analysis)
	out.Palette = slices.Clone(s.Palette)
	return out
}

// Input is what a job is generated from.
type Input struct {
	Prompt string
	Title  string
	ChatID string
}

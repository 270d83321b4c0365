package session

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is a job's position in the pipeline.
type State string

const (
	StatePending          State = "pending"
	StateAnalyzing        State = "analyzing"
	StateGeneratingAssets State = "generating_assets"
	StateGeneratingCode   State = "generating_code"
	StateAssembling       State = "assembling"
	StateComplete         State = "complete"
	StateFailed           State = "failed"
)

var stateRank = map[State]int{
	StatePending:          0,
	StateAnalyzing:        1,
	StateGeneratingAssets: 2,
	StateGeneratingCode:   3,
	StateAssembling:       4,
	StateComplete:         5,
	StateFailed:           5,
}

var titleCaser = cases.Title(language.English)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := stateRank[s]
	return ok
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Label renders the state for progress messages, e.g. "Generating Assets".
func (s State) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// CanTransition reports whether a job may move from s to next. Staying in the
// same non-terminal state is allowed so progress can advance within a phase.
func (s State) CanTransition(next State) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return stateRank[next] >= stateRank[s]
}

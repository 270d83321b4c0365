package records

import "time"

// Landing is the durable record of a completed generation job.
type Landing struct {
	LandingID    string
	OwnerID      int64
	Title        string
	Prompt       string
	AssetCount   int
	SoundCount   int
	MissingCount int
	CreatedAt    time.Time
	CompletedAt  time.Time
	DurationMs   int64
}

// Duration returns the wall-clock generation time.
func (l *Landing) Duration() time.Duration {
	if l == nil {
		return 0
	}
	return time.Duration(l.DurationMs) * time.Millisecond
}

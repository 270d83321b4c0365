package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CreateLandingRequest starts a generation job.
type CreateLandingRequest struct {
	Prompt string `json:"prompt"`
	Title  string `json:"title,omitempty"`
	ChatID string `json:"chatId,omitempty"`
}

// CreateLandingResponse is returned immediately; the pipeline continues in the background.
type CreateLandingResponse struct {
	LandingID string `json:"landingId"`
	ChannelID string `json:"channelId"`
	State     string `json:"state"`
}

// LandingSummary describes a persisted bundle.
type LandingSummary struct {
	LandingID     string   `json:"landingId"`
	OwnerID       int64    `json:"ownerId"`
	Title         string   `json:"title"`
	Prompt        string   `json:"prompt,omitempty"`
	Assets        []string `json:"assets"`
	Sounds        []string `json:"sounds"`
	MissingAssets []string `json:"missingAssets,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	CompletedAt   string   `json:"completedAt,omitempty"`
	DurationMs    int64    `json:"durationMs,omitempty"`
	PreviewURL    string   `json:"previewUrl"`
}

// LandingListResponse wraps a collection of bundles.
type LandingListResponse struct {
	Landings []LandingSummary `json:"landings"`
}

// LandingResponse wraps a single bundle.
type LandingResponse struct {
	Landing LandingSummary `json:"landing"`
}

// Status sources identify which store answered a status query.
const (
	StatusSourceLive   = "live"
	StatusSourceRecord = "record"
	StatusSourceBundle = "bundle"
)

// LandingStatus answers the status query contract. A live session reports its
// current state and progress; durable fallbacks report "complete".
type LandingStatus struct {
	LandingID string `json:"landingId"`
	State     string `json:"state"`
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	Source    string `json:"source"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// DeleteResponse reports whether anything was removed.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HubStats summarizes live hub membership.
type HubStats struct {
	Connections int `json:"connections"`
	Channels    int `json:"channels"`
}

// CheckResult mirrors a single preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool           `json:"running"`
	PID            int            `json:"pid"`
	StartedAt      string         `json:"startedAt,omitempty"`
	LockFilePath   string         `json:"lockFilePath"`
	DatabasePath   string         `json:"databasePath"`
	ArtifactDir    string         `json:"artifactDir"`
	ArtifactBytes  int64          `json:"artifactBytes"`
	ActiveSessions int            `json:"activeSessions"`
	SessionStates  map[string]int `json:"sessionStates"`
	Hub            HubStats       `json:"hub"`
	Preflight      []CheckResult  `json:"preflight"`
}

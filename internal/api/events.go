package api

import (
	"strings"
	"time"
)

// EventType names a wire message delivered over the progress hub.
type EventType string

const (
	EventProgress     EventType = "generation_progress"
	EventToolUse      EventType = "tool_use"
	EventComplete     EventType = "generation_complete"
	EventError        EventType = "generation_error"
	EventLandingError EventType = "landing_error"
	EventSubscribed   EventType = "subscribed"
	EventUnsubscribed EventType = "unsubscribed"
)

// Tool use statuses.
const (
	ToolRunning  = "running"
	ToolComplete = "complete"
	ToolFailed   = "failed"
)

// Event is the single wire shape for hub messages. Type-specific fields are
// omitted when empty; Progress is a pointer so a real 0% is still sent.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp string    `json:"timestamp"`
	LandingID string    `json:"landingId,omitempty"`
	ChannelID string    `json:"channelId,omitempty"`

	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
	Progress *int   `json:"progress,omitempty"`

	Tool  string `json:"tool,omitempty"`
	Label string `json:"label,omitempty"`

	Images  []string `json:"images,omitempty"`
	Content string   `json:"content,omitempty"`
	TimeMs  int64    `json:"timeMs,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// Terminal reports whether the event ends a generation job.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// ProgressValue returns the progress carried by the event, or -1.
func (e Event) ProgressValue() int {
	if e.Progress == nil {
		return -1
	}
	return *e.Progress
}

func timestamp() string {
	return time.Now().UTC().Format(dateTimeFormat)
}

// ProgressEvent reports a phase update.
func ProgressEvent(landingID, status, message string, progress int) Event {
	p := progress
	return Event{
		Type:      EventProgress,
		Timestamp: timestamp(),
		LandingID: landingID,
		Status:    status,
		Message:   message,
		Progress:  &p,
	}
}

// ToolUseEvent reports a sub-step indicator such as "analysis running".
func ToolUseEvent(landingID, tool, label, status string) Event {
	return Event{
		Type:      EventToolUse,
		Timestamp: timestamp(),
		LandingID: landingID,
		Tool:      tool,
		Label:     label,
		Status:    status,
	}
}

// CompleteEvent is the terminal success message.
func CompleteEvent(landingID string, images []string, content string, elapsed time.Duration) Event {
	p := 100
	return Event{
		Type:      EventComplete,
		Timestamp: timestamp(),
		LandingID: landingID,
		Status:    "complete",
		Progress:  &p,
		Images:    images,
		Content:   content,
		TimeMs:    elapsed.Milliseconds(),
	}
}

// ErrorEvent is the terminal failure message.
func ErrorEvent(landingID, message, code string) Event {
	return Event{
		Type:      EventError,
		Timestamp: timestamp(),
		LandingID: landingID,
		Status:    "failed",
		Error:     message,
		ErrorCode: code,
	}
}

// LandingErrorEvent reports a non-terminal problem with a client request on a
// live connection, such as a malformed subscribe frame.
func LandingErrorEvent(message, code string) Event {
	return Event{
		Type:      EventLandingError,
		Timestamp: timestamp(),
		Error:     message,
		ErrorCode: code,
	}
}

// SubscribedEvent acknowledges a subscription.
func SubscribedEvent(channelID string) Event {
	return Event{Type: EventSubscribed, Timestamp: timestamp(), ChannelID: channelID}
}

// UnsubscribedEvent acknowledges an unsubscribe.
func UnsubscribedEvent(channelID string) Event {
	return Event{Type: EventUnsubscribed, Timestamp: timestamp(), ChannelID: channelID}
}

// Client frame types accepted on the live connection.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
)

// ClientFrame is a message sent by a live client.
type ClientFrame struct {
	Type      string `json:"type"`
	ChannelID string `json:"channelId,omitempty"`
}

// Normalize trims and lowercases the frame type.
func (f ClientFrame) Normalize() ClientFrame {
	f.Type = strings.ToLower(strings.TrimSpace(f.Type))
	f.ChannelID = strings.TrimSpace(f.ChannelID)
	return f
}

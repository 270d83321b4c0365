package hub

import (
	"fmt"
	"regexp"
	"strings"
)

// Channel kinds.
const (
	KindLanding = "landing"
	KindChat    = "chat"
)

var channelIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// LandingChannel derives the broadcast channel for a generation job.
func LandingChannel(landingID string) string {
	return KindLanding + ":" + landingID
}

// ChatChannel derives the broadcast channel for a chat.
func ChatChannel(chatID string) string {
	return KindChat + ":" + chatID
}

// ParseChannel splits a channel name into its kind and identifier and
// rejects anything malformed.
func ParseChannel(name string) (kind, id string, err error) {
	kind, id, ok := strings.Cut(name, ":")
	if !ok || (kind != KindLanding && kind != KindChat) {
		return "", "", fmt.Errorf("unknown channel %q", truncate(name, 80))
	}
	if !channelIDPattern.MatchString(id) {
		return "", "", fmt.Errorf("invalid %s channel id", kind)
	}
	return kind, id, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

package logs

import (
	"strings"

	"github.com/bytedance/sonic"

	"landing/internal/logging"
)

// Filter narrows tailed lines. The zero value matches everything.
type Filter struct {
	LandingID string
	Level     string
	Search    string
}

func (f Filter) empty() bool {
	return f.LandingID == "" && f.Level == "" && f.Search == ""
}

// Match reports whether line passes every configured predicate. JSON lines are
// matched on their fields; console lines fall back to substring checks.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(f.Search)) {
		return false
	}
	if fields, ok := decodeJSONLine(line); ok {
		if f.LandingID != "" && fields[logging.FieldLandingID] != f.LandingID {
			return false
		}
		if f.Level != "" && !strings.EqualFold(fields["level"], f.Level) {
			return false
		}
		return true
	}
	if f.LandingID != "" && !strings.Contains(line, f.LandingID) {
		return false
	}
	if f.Level != "" && !strings.Contains(strings.ToUpper(line), strings.ToUpper(f.Level)) {
		return false
	}
	return true
}

func decodeJSONLine(line string) (map[string]string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var raw map[string]any
	if err := sonic.UnmarshalString(trimmed, &raw); err != nil {
		return nil, false
	}
	fields := make(map[string]string, 3)
	for _, key := range []string{logging.FieldLandingID, "level", "msg"} {
		if v, ok := raw[key].(string); ok {
			fields[key] = v
		}
	}
	return fields, true
}

package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"landing/internal/config"
)

const userAgent = "Landing-Go/0.1.0"

// Event identifies a notification-worthy milestone.
type Event string

const (
	EventLandingCompleted Event = "landing_completed"
	EventLandingFailed    Event = "landing_failed"
	EventTest             Event = "test"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service publishes events to an external channel.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		errors:    cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	errors    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventLandingCompleted:
		if !n.completed {
			return message{}, false
		}
		title := payload.string("title")
		if title == "" {
			title = "Untitled landing"
		}
		body := fmt.Sprintf("✅ Landing ready: %s", title)
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body = fmt.Sprintf("%s (%s)", body, d.Round(time.Second))
		}
		if missing, ok := payload["missing"].(int); ok && missing > 0 {
			body = fmt.Sprintf("%s\n%d asset(s) missing", body, missing)
		}
		return message{
			title: "Landing - Complete",
			body:  body,
			tags:  []string{"landing", "generation", "completed"},
		}, true
	case EventLandingFailed:
		if !n.errors {
			return message{}, false
		}
		var b strings.Builder
		b.WriteString("❌ Generation failed")
		if stage := payload.string("stage"); stage != "" {
			b.WriteString(" during ")
			b.WriteString(stage)
		}
		if errText := payload.string("error"); errText != "" {
			b.WriteString(": ")
			b.WriteString(errText)
		}
		return message{
			title:    "Landing - Error",
			body:     b.String(),
			tags:     []string{"landing", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Landing - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"landing", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) string(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

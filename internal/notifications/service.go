package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reel/internal/config"
)

const userAgent = "Reel-Go/0.1.0"

// Event identifies a notable daemon occurrence worth pushing to the
// configured ntfy topic.
type Event string

const (
	EventGenerationCompleted Event = "generation_completed"
	EventGenerationFailed    Event = "generation_failed"
	EventPurchaseApplied     Event = "purchase_applied"
	EventRewardGranted       Event = "reward_granted"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Payload carries event-specific fields used to format the message.
type Payload map[string]string

// Service is the notification surface exposed to daemon components.
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

	timeout := cfg.Notifications.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		generation:  cfg.Notifications.Generation,
		purchases:   cfg.Notifications.Purchases,
		errorAlerts: cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	generation  bool
	purchases   bool
	errorAlerts bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	formatted, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, formatted)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventGenerationCompleted, EventGenerationFailed:
		return n.generation
	case EventPurchaseApplied, EventRewardGranted:
		return n.purchases
	case EventError:
		return n.errorAlerts
	default:
		return true
	}
}

func format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }

	switch event {
	case EventGenerationCompleted:
		body := fmt.Sprintf("🎬 Video ready: %s", get("prompt"))
		if url := get("videoUrl"); url != "" {
			body = fmt.Sprintf("%s\n%s", body, url)
		}
		return message{
			title:    "Reel - Video Ready",
			body:     body,
			tags:     []string{"reel", "generation", "completed"},
			priority: "high",
		}, true
	case EventGenerationFailed:
		reason := get("reason")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title: "Reel - Generation Failed",
			body:  fmt.Sprintf("Generation failed: %s\nReason: %s", get("prompt"), reason),
			tags:  []string{"reel", "generation", "failed"},
		}, true
	case EventPurchaseApplied:
		return message{
			title: "Reel - Purchase Applied",
			body:  fmt.Sprintf("💳 %s: +%s credits", get("product"), get("credits")),
			tags:  []string{"reel", "store", "applied"},
		}, true
	case EventRewardGranted:
		return message{
			title: "Reel - Weekly Reward",
			body:  fmt.Sprintf("🎁 Weekly reward: +%s credits", get("credits")),
			tags:  []string{"reel", "reward", "granted"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := get("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if detail := get("error"); detail != "" {
			builder.WriteString(detail)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Reel - Error",
			body:     builder.String(),
			tags:     []string{"reel", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Reel - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"reel", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

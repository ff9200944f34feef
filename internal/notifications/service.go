package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"pressroom/internal/config"
	"pressroom/internal/textutil"
)

const userAgent = "Pressroom/0.1.0"

// Event identifies a notification template.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventAnnouncement Event = "announcement"
	EventTest         Event = "test"
)

// Payload carries template values for an event.
type Payload map[string]any

// Service defines the notification surface exposed to event listeners.
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

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "text/plain; charset=utf-8")
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
	click    string
}

type ntfyService struct {
	endpoint string
	client   *resty.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		name := payload.label()
		action := payload.str("action")
		if action == "skip" {
			return message{
				title: "Pressroom - Unchanged",
				body:  fmt.Sprintf("Already up to date: %s", name),
				tags:  []string{"pressroom", "job", "skip"},
			}, true
		}
		if action == "" {
			action = "create"
		}
		body := fmt.Sprintf("✅ Published: %s (%s)", name, action)
		if ref := payload.str("resultRef"); ref != "" {
			body = fmt.Sprintf("%s\nPost: %s", body, ref)
		}
		return message{
			title: "Pressroom - Published",
			body:  body,
			tags:  []string{"pressroom", "job", textutil.SanitizeToken(action)},
		}, true
	case EventJobFailed:
		reason := payload.str("error")
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "Pressroom - Job Failed",
			body:     fmt.Sprintf("❌ %s: %s", payload.label(), reason),
			tags:     []string{"pressroom", "job", "failed"},
			priority: "high",
		}, true
	case EventAnnouncement:
		return message{
			title:    payload.str("title"),
			body:     payload.str("message"),
			tags:     []string{"pressroom", "deal"},
			priority: "high",
			click:    payload.str("click"),
		}, true
	case EventTest:
		return message{
			title:    "Pressroom - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"pressroom", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) label() string {
	if name := p.str("displayName"); name != "" {
		return name
	}
	if id := p.str("subjectID"); id != "" {
		return "subject " + id
	}
	return "unknown subject"
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req := n.client.R().
		SetContext(ctx).
		SetBody(msg.body)
	if msg.title != "" {
		req.SetHeader("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.SetHeader("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.SetHeader("Priority", msg.priority)
	}
	if msg.click != "" {
		req.SetHeader("Click", msg.click)
	}

	resp, err := req.Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		body := resp.String()
		if len(body) > 2048 {
			body = body[:2048]
		}
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode(), strings.TrimSpace(body))
	}
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vaultlauncher/internal/config"
)

const userAgent = "vaultlauncher/1.0"

// Event identifies a notification type.
type Event string

const (
	EventBackupCompleted Event = "backup_completed"
	EventBackupFailed    Event = "backup_failed"
	EventDaemonStarted   Event = "daemon_started"
	EventDaemonFailed    Event = "daemon_failed"
	EventDaemonStopped   Event = "daemon_stopped"
	EventToolCompleted   Event = "tool_completed"
	EventToolFailed      Event = "tool_failed"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed Service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[category]bool{
			categoryBackup: cfg.Notifications.Backup,
			categoryDaemon: cfg.Notifications.Daemon,
			categoryErrors: cfg.Notifications.Errors,
			categoryAlways: true,
		},
	}
}

type category int

const (
	categoryAlways category = iota
	categoryBackup
	categoryDaemon
	categoryErrors
)

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[category]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, p Payload) error {
	cat, data, ok := render(event, p)
	if !ok || !n.enabled[cat] {
		return nil
	}
	return n.send(ctx, data)
}

func render(event Event, p Payload) (category, payload, bool) {
	vault := p.text("vault")
	switch event {
	case EventBackupCompleted:
		return categoryBackup, payload{
			title:   "Vault - Backup Complete",
			message: fmt.Sprintf("Backup of %s complete: %s", vault, p.text("summary")),
			tags:    []string{"vault", "backup", "completed"},
		}, true
	case EventBackupFailed:
		return categoryBackup, payload{
			title:    "Vault - Backup Failed",
			message:  fmt.Sprintf("Backup of %s failed: %s", vault, p.text("error")),
			tags:     []string{"vault", "backup", "failed"},
			priority: "high",
		}, true
	case EventDaemonStarted:
		return categoryDaemon, payload{
			title:   "Vault - Online",
			message: fmt.Sprintf("Vault %s is available at %s", vault, p.text("url")),
			tags:    []string{"vault", "daemon", "started"},
		}, true
	case EventDaemonFailed:
		return categoryDaemon, payload{
			title:    "Vault - Start Failed",
			message:  fmt.Sprintf("Vault %s failed to start: %s", vault, p.text("error")),
			tags:     []string{"vault", "daemon", "failed"},
			priority: "high",
		}, true
	case EventDaemonStopped:
		return categoryDaemon, payload{
			title:   "Vault - Offline",
			message: fmt.Sprintf("Vault %s stopped", vault),
			tags:    []string{"vault", "daemon", "stopped"},
		}, true
	case EventToolCompleted:
		return categoryDaemon, payload{
			title:   "Vault - Maintenance Complete",
			message: fmt.Sprintf("%s finished on %s", p.text("tool"), vault),
			tags:    []string{"vault", "tool", "completed"},
		}, true
	case EventToolFailed:
		return categoryDaemon, payload{
			title:    "Vault - Maintenance Failed",
			message:  fmt.Sprintf("%s failed on %s: %s", p.text("tool"), vault, p.text("error")),
			tags:     []string{"vault", "tool", "failed"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := p.text("context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := p.text("error"); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return categoryErrors, payload{
			title:    "Vault - Error",
			message:  builder.String(),
			tags:     []string{"vault", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return categoryAlways, payload{
			title:    "Vault - Test",
			message:  "Notification system test",
			tags:     []string{"vault", "test"},
			priority: "low",
		}, true
	}
	return categoryAlways, payload{}, false
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventBackupCompleted, notifications.Payload{"vault": "/v"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "backup completed",
			event:         notifications.EventBackupCompleted,
			payload:       notifications.Payload{"vault": "/srv/vault", "summary": "12 files, 2.0 MiB"},
			expectTitle:   "Vault - Backup Complete",
			expectMessage: "Backup of /srv/vault complete: 12 files, 2.0 MiB",
			expectTags:    "vault,backup,completed",
		},
		{
			name:           "daemon failed",
			event:          notifications.EventDaemonFailed,
			payload:        notifications.Payload{"vault": "/srv/vault", "error": errors.New("port already in use")},
			expectTitle:    "Vault - Start Failed",
			expectMessage:  "Vault /srv/vault failed to start: port already in use",
			expectTags:     "vault,daemon,failed",
			expectPriority: "high",
		},
		{
			name:          "tool completed",
			event:         notifications.EventToolCompleted,
			payload:       notifications.Payload{"vault": "/srv/vault", "tool": "clean"},
			expectTitle:   "Vault - Maintenance Complete",
			expectMessage: "clean finished on /srv/vault",
			expectTags:    "vault,tool,completed",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "config", "error": "disk full"},
			expectTitle:    "Vault - Error",
			expectMessage:  "Error with config: disk full",
			expectTags:     "vault,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursCategoryToggles(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Backup = false
	cfg.Notifications.Daemon = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{
		notifications.EventBackupCompleted,
		notifications.EventBackupFailed,
		notifications.EventDaemonStarted,
		notifications.EventToolFailed,
		notifications.Event("unknown"),
	} {
		if err := svc.Publish(context.Background(), event, nil); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("suppressed events reached ntfy %d times", calls.Load())
	}

	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("test notification should always be sent, calls=%d", calls.Load())
	}
}

func TestNtfyServiceReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"glossa/internal/config"
)

const userAgent = "Glossa-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyJobStarted(ctx context.Context, title string) error
	NotifyJobCompleted(ctx context.Context, title, output string, segments, failed int) error
	NotifyJobFailed(ctx context.Context, title, reason string) error
	NotifyJobCancelled(ctx context.Context, title string) error
	TestNotification(ctx context.Context) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobStarted(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Glossa - Translation Started",
		message: fmt.Sprintf("Started translating: %s", title),
		tags:    []string{"glossa", "job", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title, output string, segments, failed int) error {
	title = strings.TrimSpace(title)
	output = strings.TrimSpace(output)

	var messageTitle string
	var builder strings.Builder
	if failed == 0 {
		messageTitle = "Glossa - Complete"
		fmt.Fprintf(&builder, "✅ Subtitles ready: %s (%d segments)", title, segments)
	} else {
		messageTitle = "Glossa - Complete (with errors)"
		fmt.Fprintf(&builder, "⚠️ Subtitles ready: %s (%d segments, %d kept original text)", title, segments, failed)
	}
	if output != "" {
		fmt.Fprintf(&builder, "\nFile: %s", output)
	}

	data := payload{
		title:    messageTitle,
		message:  builder.String(),
		tags:     []string{"glossa", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title, reason string) error {
	title = strings.TrimSpace(title)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	data := payload{
		title:    "Glossa - Failed",
		message:  fmt.Sprintf("❌ Translation failed: %s\n%s", title, reason),
		tags:     []string{"glossa", "job", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCancelled(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Glossa - Cancelled",
		message: fmt.Sprintf("Translation cancelled: %s", title),
		tags:    []string{"glossa", "job", "cancelled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Glossa - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"glossa", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyJobStarted(context.Context, string) error                     { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, string, int, int) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error              { return nil }
func (noopService) NotifyJobCancelled(context.Context, string) error                   { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }

package infrastructure

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/yourusername/vidgrab-go/internal/domain"
	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// NotificationService sends desktop notifications about download events
type NotificationService struct {
	config domain.NotificationConfig
	logger *zap.Logger
	run    func(ctx context.Context, name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Send sends a notification with the configured method
func (n *NotificationService) Send(title, message string) error {
	if n == nil || !n.config.Enabled {
		return nil
	}

	var (
		name string
		args []string
	)
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		name, args = "osascript", []string{"-e", script}
	case "notify-send":
		name, args = "notify-send", []string{"--app-name=VidGrab", title, message}
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := n.run(ctx, name, args...); err != nil {
		n.logger.Error("Failed to send notification", zap.String("method", name), zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent", zap.String("title", title), zap.String("message", message))
	return nil
}

// NotifyDownloadQueued sends notification when download is queued
func (n *NotificationService) NotifyDownloadQueued(d *domain.Download) {
	n.Send("Download Queued", fmt.Sprintf("Added to queue: %s (%s)", label(d), d.Platform))
}

// NotifyDownloadStarted sends notification when download starts
func (n *NotificationService) NotifyDownloadStarted(d *domain.Download) {
	n.Send("Download Started", fmt.Sprintf("Processing: %s (%s)", label(d), d.Platform))
}

// NotifyDownloadCompleted sends notification when download completes
func (n *NotificationService) NotifyDownloadCompleted(d *domain.Download) {
	n.Send("Download Completed", fmt.Sprintf("Success: %s (%s)", label(d), d.Platform))
}

// NotifyDownloadFailed sends notification when download fails
func (n *NotificationService) NotifyDownloadFailed(d *domain.Download, err error) {
	msg := fmt.Sprintf("Failed: %s (%s)", label(d), d.Platform)
	if err != nil {
		msg += ": " + truncateString(err.Error(), 60)
	}
	n.Send("Download Failed", msg)
}

// NotifyQueueEmpty sends notification when queue is empty
func (n *NotificationService) NotifyQueueEmpty() {
	n.Send("Queue Empty", "All downloads completed")
}

// label prefers the video title over the URL
func label(d *domain.Download) string {
	if d.Title != "" {
		return truncateString(d.Title, 40)
	}
	return truncateString(d.URL, 30)
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService posts desktop notifications about delivery outcomes
type NotificationService struct {
	config domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Notify sends a notification. Disabled or unknown methods are a no-op.
func (n *NotificationService) Notify(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var name string
	var args []string
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, appleScriptEscape(message), appleScriptEscape(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		name, args = "osascript", []string{"-e", script}
	case "notify-send":
		name, args = "notify-send", []string{title, message}
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err := n.run(name, args...); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("command", CommandLine(name, args...)),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyDelivered reports an automated save
func (n *NotificationService) NotifyDelivered(filename string, outcome *domain.DeliveryOutcome) {
	message := fmt.Sprintf("Saved %s", truncateString(filename, 40))
	if outcome != nil && outcome.Caveat != "" {
		message = fmt.Sprintf("Opened %s in browser", truncateString(filename, 40))
	}
	n.Notify("Download Completed", message)
}

// NotifyAssisted reports that the user has to finish the save by hand
func (n *NotificationService) NotifyAssisted(filename string) {
	n.Notify("Manual Save Needed", fmt.Sprintf("Finish saving %s in your browser", truncateString(filename, 40)))
}

// NotifyDeliveryFailed reports a delivery that produced nothing
func (n *NotificationService) NotifyDeliveryFailed(filename string, err error) {
	n.Notify("Download Failed", fmt.Sprintf("Failed: %s", truncateString(filename, 40)))
}

func appleScriptEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Package notify provides observers for the blocking notification bus:
// cross-platform desktop notifications (github.com/gen2brain/beeep) and an
// HTTP webhook forwarder. Observers only report state; blocking correctness
// never depends on them.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/config"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/events"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/logging"
)

// Notifier sends desktop notifications for operation lifecycle events.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	mu      sync.RWMutex

	showEnded  bool
	showFailed bool
}

// NewNotifier creates a notifier with the given settings.
func NewNotifier(cfg *config.NotificationSettings, logger *logging.Logger) *Notifier {
	if cfg == nil {
		defaults := config.NewSettings()
		cfg = &defaults.Notifications
	}

	return &Notifier{
		logger:     logger,
		enabled:    cfg.Enabled,
		showEnded:  cfg.ShowOperationEnded,
		showFailed: cfg.ShowOperationFailed,
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// OperationEnded sends a notification when a long operation finishes.
// Only operations that ran at least minDuration are worth notifying about.
func (n *Notifier) OperationEnded(operation string, affected int, elapsed, minDuration time.Duration) {
	n.mu.RLock()
	show := n.enabled && n.showEnded
	n.mu.RUnlock()
	if !show || elapsed < minDuration {
		return
	}

	title := "ChestBuddy"
	message := fmt.Sprintf("%s finished after %s.\n%d resource(s) released.",
		titleCase(operation), elapsed.Round(time.Second), affected)

	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Str("operation", operation).
			Msg("Failed to send operation ended notification")
	}
}

// OperationFailed sends a notification when an operation ends with an error.
func (n *Notifier) OperationFailed(operation string, errMsg string) {
	n.mu.RLock()
	show := n.enabled && n.showFailed
	n.mu.RUnlock()
	if !show {
		return
	}

	title := "ChestBuddy"
	message := fmt.Sprintf("%s failed:\n%s", titleCase(operation), truncate(errMsg, 100))

	if err := n.send(title, message); err != nil {
		n.logger.Warn().Err(err).Str("operation", operation).
			Msg("Failed to send operation failed notification")
	}
}

// Watch consumes events from the bus until the channel closes, pairing
// operation_started with operation_ended to compute elapsed time. Non-
// operation events are ignored, so the channel may come from SubscribeAll.
// Intended to run as a goroutine:
//
//	go notifier.Watch(bus.SubscribeAll())
func (n *Notifier) Watch(ch <-chan events.Event) {
	starts := make(map[string]time.Time)
	for ev := range ch {
		oe, ok := ev.(*events.OperationEvent)
		if !ok {
			continue
		}
		switch oe.Type() {
		case events.EventOperationStarted:
			starts[oe.Operation] = oe.Timestamp()
		case events.EventOperationEnded:
			elapsed := time.Duration(0)
			if started, ok := starts[oe.Operation]; ok {
				elapsed = oe.Timestamp().Sub(started)
				delete(starts, oe.Operation)
			}
			n.OperationEnded(oe.Operation, len(oe.ResourceIDs), elapsed, 0)
		}
	}
}

// send is the internal method that actually sends the notification.
func (n *Notifier) send(title, message string) error {
	// beeep.Notify is cross-platform:
	// - Windows: Uses toast notifications
	// - macOS: Uses NSUserNotificationCenter
	// - Linux: Uses D-Bus notifications
	return beeep.Notify(title, message, "")
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// titleCase upper-cases the first rune of an operation identifier for display.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Package notification pushes session alerts (trade opened, settlement,
// limit hit) out of the process. The engine fires alerts asynchronously
// and ignores delivery failures beyond logging them, so a backend outage
// never affects trading.
package notification

import (
	"context"
	"log"
)

// AlertLevel grades an alert: INFO for routine lifecycle events, WARNING
// for losses and session limits, CRITICAL for conditions needing a human.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one outbound message.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier delivers alerts to one backend.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log. It is the fallback when no
// Telegram credentials are configured, so every alert still lands
// somewhere observable.
type LogNotifier struct{}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the alert; it cannot fail.
func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Package notification delivers signal alerts to external channels
// (Telegram, webhooks) and adapts them to the engine's sink interface.
package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	"signals-systemv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent. Signal carries the
// originating verdict when the alert wraps one, so structured backends
// can expose the domain fields instead of the flattened message.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Signal  *model.Verdict
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// FromVerdict renders a verdict as an alert. High-confidence signals
// escalate to warning so channel filters can pick them out.
func FromVerdict(v model.Verdict) Alert {
	level := AlertInfo
	if v.Confidence >= 80 {
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("%s %s %ds", strings.ToUpper(string(v.Direction)), v.Asset, v.Period),
		Message: fmt.Sprintf("rule=%s confidence=%d%% at=%s",
			v.Rule, v.Confidence, v.ProducedAt.UTC().Format("15:04:05")),
		Signal: &v,
	}
}

// SignalSink adapts a Notifier into a verdict sink. Delivery failures
// are logged and swallowed so a dead channel never stalls the engine.
type SignalSink struct {
	notifier Notifier
}

// NewSignalSink wraps a notifier for registration with the engine.
func NewSignalSink(n Notifier) *SignalSink {
	return &SignalSink{notifier: n}
}

func (s *SignalSink) OnSignal(ctx context.Context, v model.Verdict) error {
	if err := s.notifier.Send(ctx, FromVerdict(v)); err != nil {
		log.Printf("[notify] delivery failed for %s/%d: %v", v.Asset, v.Period, err)
	}
	return nil
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

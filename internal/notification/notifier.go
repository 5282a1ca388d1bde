// Package notification delivers signal alerts to external channels
// (Telegram, webhooks) and bridges them onto the streaming detector.
package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	"signal-systemv1/internal/logger"
	"signal-systemv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel         `json:"level"`
	Title   string             `json:"title"`
	Message string             `json:"message"`
	Event   *model.SignalEvent `json:"event,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// FromSignalEvent builds the alert for an emitted signal transition.
// Strong signals escalate to WARNING so channel-side filters can key off
// the level.
func FromSignalEvent(ev model.SignalEvent) Alert {
	level := AlertInfo
	if ev.Strength >= 0.7 {
		level = AlertWarning
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Direction: %s\n", ev.Direction)
	fmt.Fprintf(&b, "Price: %.6g\n", ev.Price)
	fmt.Fprintf(&b, "Strength: %.2f\n", ev.Strength)
	fmt.Fprintf(&b, "Reason: %s", ev.Reason)

	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s %s %s", ev.Direction, ev.Symbol, ev.Interval),
		Message: b.String(),
		Event:   &ev,
	}
}

// Dispatcher fans an alert out to several notifiers. A failing backend is
// logged and never blocks the others.
type Dispatcher struct {
	notifiers []Notifier

	// OnFailure, when set, is called once per failed delivery.
	OnFailure func()
}

// NewDispatcher creates a dispatcher over the given backends.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// OnSignal satisfies the detector's observer contract: every emitted
// transition becomes an alert on every backend.
func (d *Dispatcher) OnSignal(ctx context.Context, ev model.SignalEvent) error {
	alert := FromSignalEvent(ev)
	for _, n := range d.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend %T failed (trace %s): %v", n, logger.TraceID(ctx), err)
			if d.OnFailure != nil {
				d.OnFailure()
			}
		}
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
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, strings.ReplaceAll(alert.Message, "\n", " | "))
	return nil
}

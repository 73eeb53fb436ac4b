// Package notify records trade suggestions and fans engine events out to
// chat channels. Events can be filtered by type so operators receive only
// the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/btcsniper/internal/domain"
)

// Event types emitted by the engine.
const (
	EventSignalDetected = "signal_detected"
	EventTradeExecuted  = "trade_executed"
	EventTradeFailed    = "trade_failed"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// EventSender is implemented by senders that format messages per event type.
// Notify prefers SendEvent when a sender offers it.
type EventSender interface {
	SendEvent(ctx context.Context, event, title, message string) error
}

// Notifier dispatches notifications to one or more Senders. It maintains a set
// of allowed event types; Notify only forwards messages whose event type is in
// the allowed set, while NotifyAll bypasses the filter.
type Notifier struct {
	senders     []Sender
	events      map[string]bool // allowed event types
	suggestions *SuggestionLog
	logger      *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded by Notify.
// If events is empty, all event types are allowed. suggestions may be nil.
func NewNotifier(senders []Sender, events []string, suggestions *SuggestionLog, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:     senders,
		events:      allowed,
		suggestions: suggestions,
		logger:      logger.With(slog.String("component", "notifier")),
	}
}

// RecordSuggestion appends the brief to the suggestion log.
func (n *Notifier) RecordSuggestion(b domain.TradeBrief) error {
	if n.suggestions == nil {
		return nil
	}
	if err := n.suggestions.Append(b); err != nil {
		return err
	}
	n.logger.Info("suggestion recorded",
		slog.String("brief_id", b.ID),
		slog.String("path", n.suggestions.Path()),
	)
	return nil
}

// Suggestions returns the last n suggestion-log lines.
func (n *Notifier) Suggestions(lines int) ([]string, error) {
	if n.suggestions == nil {
		return []string{}, nil
	}
	return n.suggestions.Tail(lines)
}

// Notify sends a notification to all senders only if the event type is in the
// allowed list. If no events were configured (empty list), all events pass.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	// If specific events were configured, filter.
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, event, title, message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, "", title, message)
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, event, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		var err error
		if es, ok := s.(EventSender); ok && event != "" {
			err = es.SendEvent(ctx, event, title, message)
		} else {
			err = s.Send(ctx, title, message)
		}
		if err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

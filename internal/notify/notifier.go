// Package notify provides a multi-channel notification system. Trade and risk
// events from the bus are dispatched to all registered senders (Telegram,
// Discord, etc.) and can be filtered by event type so operators receive only
// the alerts they care about.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eguzmanz/dexdash/internal/domain"
	"github.com/eguzmanz/dexdash/internal/service"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier consumes trade and risk events from the bus and dispatches them to
// one or more Senders. It maintains a set of allowed event types; only events
// whose type is in the allowed set are forwarded.
type Notifier struct {
	bus     domain.EventBus
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded. If events
// is empty, all event types are allowed.
func NewNotifier(bus domain.EventBus, senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		bus:     bus,
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Run consumes the trade and risk channels until ctx is cancelled. It returns
// nil on cancellation. With no senders configured it is a no-op.
func (n *Notifier) Run(ctx context.Context) error {
	if len(n.senders) == 0 {
		n.logger.Info("no senders configured, notifications disabled")
		<-ctx.Done()
		return nil
	}

	trades, err := n.bus.Subscribe(ctx, service.ChannelTrades)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", service.ChannelTrades, err)
	}
	risk, err := n.bus.Subscribe(ctx, service.ChannelRisk)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", service.ChannelRisk, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-trades:
			if !ok {
				return nil
			}
			n.handle(ctx, payload)
		case payload, ok := <-risk:
			if !ok {
				return nil
			}
			n.handle(ctx, payload)
		}
	}
}

// handle decodes an event payload and dispatches it if its type passes the
// filter. Malformed payloads are logged and dropped.
func (n *Notifier) handle(ctx context.Context, payload []byte) {
	var ev service.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		n.logger.WarnContext(ctx, "malformed event payload",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(n.events) > 0 && !n.events[ev.Type] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", ev.Type),
		)
		return
	}

	title, message := formatEvent(ev)
	if err := n.dispatch(ctx, title, message); err != nil {
		n.logger.WarnContext(ctx, "notification delivery incomplete",
			slog.String("event", ev.Type),
			slog.String("error", err.Error()),
		)
	}
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch iterates over all senders and sends the notification. Errors from
// individual senders are collected and returned as a combined error; a single
// sender failure does not prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
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

// formatEvent renders an event as a notification title and body. Trade and
// emergency stop events carry a domain.Trade in Data.
func formatEvent(ev service.Event) (title, message string) {
	switch ev.Type {
	case service.EventTradeExecuted:
		if t, ok := decodeTrade(ev.Data); ok {
			return "Trade Executed", fmt.Sprintf("%s %s %s @ %s (total %s, status %s)",
				strings.ToUpper(string(t.Side)), t.Amount, t.Pair, t.Price, t.TotalCost, t.Status)
		}
		return "Trade Executed", rawBody(ev)
	case service.EventTradeSettled:
		if t, ok := decodeTrade(ev.Data); ok {
			return "Trade Settled", fmt.Sprintf("%s %s %s settled, tx %s", t.Side, t.Amount, t.Pair, t.TxHash)
		}
		return "Trade Settled", rawBody(ev)
	case service.EventEmergencyStop:
		if t, ok := decodeTrade(ev.Data); ok {
			return "Emergency Stop", fmt.Sprintf("liquidated %s %s @ %s (total %s)",
				t.Amount, t.Pair, t.Price, t.TotalCost)
		}
		return "Emergency Stop", rawBody(ev)
	default:
		return ev.Type, rawBody(ev)
	}
}

func decodeTrade(data interface{}) (domain.Trade, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.Trade{}, false
	}
	var t domain.Trade
	if err := json.Unmarshal(raw, &t); err != nil || t.ID == "" {
		return domain.Trade{}, false
	}
	return t, true
}

func rawBody(ev service.Event) string {
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return ev.Type
	}
	return string(raw)
}

// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Telegram, Discord) and can be
// filtered by event type so operators receive only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
)

// Event types the engine emits.
const (
	EventTradeOpen    = "trade_open"
	EventTradeClose   = "trade_close"
	EventRiskAlert    = "risk_alert"
	EventBotStopped   = "bot_stopped"
	EventDailySummary = "daily_summary"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It maintains a set
// of allowed event types; only messages whose event type is in the allowed set
// are forwarded.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded. If events
// is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification to all senders if the event type is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, title, message)
}

// TradeOpened reports a new position.
func (n *Notifier) TradeOpened(ctx context.Context, sig domain.TradeSignal, ticket int64, lots float64) error {
	msg := fmt.Sprintf(
		"%s %s %.2f lots @ %.5f\nStop: %.5f\nZone: %s (confidence %.0f)\nTicket: %d",
		sig.Direction, sig.Symbol, lots, sig.EntryPrice, sig.StopLoss,
		sig.Zone.Type, sig.Confidence, ticket,
	)
	return n.Notify(ctx, EventTradeOpen, "Trade Opened", msg)
}

// TradeClosed reports a closed position and its result.
func (n *Notifier) TradeClosed(ctx context.Context, pos domain.Position, reason domain.CloseReason, profit, pips float64) error {
	msg := fmt.Sprintf(
		"%s %s ticket %d closed (%s)\nP/L: %+.2f (%+.1f pips)",
		pos.Direction, pos.Symbol, pos.Ticket, reason, profit, pips,
	)
	return n.Notify(ctx, EventTradeClose, "Trade Closed", msg)
}

// RiskAlert reports a refused trade or a tripped protection rule.
func (n *Notifier) RiskAlert(ctx context.Context, reason string) error {
	return n.Notify(ctx, EventRiskAlert, "Risk Alert", reason)
}

// DailySummary reports the day's aggregate at rollover. progress is the
// account growth since the lifetime start as a fraction.
func (n *Notifier) DailySummary(ctx context.Context, stats domain.DayStats, progress float64) error {
	msg := fmt.Sprintf(
		"%s\nTrades: %d (W%d / L%d, %.0f%% win rate)\nP/L: %+.2f (%+.1f pips)\nBalance: %.2f -> %.2f\nChallenge: %+.1f%%",
		stats.Date, stats.TotalTrades, stats.WinningTrades, stats.LosingTrades,
		stats.WinRate()*100, stats.TotalProfit, stats.TotalPips,
		stats.StartingBalance, stats.EndingBalance, progress*100,
	)
	return n.Notify(ctx, EventDailySummary, "Daily Summary", msg)
}

// EngineStopped reports a shutdown, clean or otherwise.
func (n *Notifier) EngineStopped(ctx context.Context, reason string, uptime time.Duration) error {
	msg := fmt.Sprintf("Reason: %s\nUptime: %s", reason, uptime.Round(time.Second))
	return n.Notify(ctx, EventBotStopped, "Engine Stopped", msg)
}

// dispatch iterates over all senders. Errors from individual senders are
// collected and returned as a combined error; a single sender failure does
// not prevent delivery to the remaining senders.
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

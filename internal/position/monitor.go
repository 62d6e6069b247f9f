package position

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
)

// Exhaustion window sizes, in observations.
const (
	shortWindow = 5
	longWindow  = 50
)

// Config holds the exit-management parameters.
type Config struct {
	PipSize     float64
	MaxHoldTime time.Duration

	// Exhaustion thresholds.
	VolumeDropRatio  float64 // short-window volume below this fraction of the long window
	SpreadWidenRatio float64 // current spread above this multiple of the trailing mean
	StallRangePips   float64 // short-window price range below this is a stall
	MinProfitPips    float64 // exhaustion exits only lock in at least this profit
	MinSamples       int     // observations required before exhaustion is trusted

	// Trailing stop.
	TrailActivatePips float64
	TrailBufferPips   float64
}

// Verdict is the outcome of evaluating one tick against an open position.
type Verdict struct {
	Close     bool
	Reason    domain.CloseReason
	Kind      domain.ExhaustionKind // set when Reason is CloseExhaustion
	ExitPrice float64               // stop price for stop-loss exits, market otherwise
}

// Monitor watches open positions and decides when they must close. Exit
// conditions are evaluated in a strict order on every tick: stop-loss
// crossing, hold-time limit, exhaustion, then trailing stop maintenance.
// The trailing stop is a side effect, never a close.
type Monitor struct {
	cfg    Config
	broker domain.Broker
	clock  domain.Clock
	logger *slog.Logger

	mu      sync.Mutex
	history *History
	trailed map[int64]bool
}

// NewMonitor creates a Monitor.
func NewMonitor(cfg Config, broker domain.Broker, clock domain.Clock, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		broker:  broker,
		clock:   clock,
		logger:  logger.With(slog.String("component", "position_monitor")),
		history: NewHistory(),
		trailed: make(map[int64]bool),
	}
}

// Observe records a market snapshot into the exhaustion history. Called on
// every poll, including ticks with no open position, so the buffers are warm
// when a position opens.
func (m *Monitor) Observe(snap domain.MarketSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Observe(snap)
}

// EvaluateTick checks one open position against the current snapshot and
// returns a close verdict. When no exit fires it maintains the trailing stop.
func (m *Monitor) EvaluateTick(ctx context.Context, pos domain.Position, snap domain.MarketSnapshot) Verdict {
	profitPips := m.profitPips(pos, snap)

	if m.stopCrossed(pos, snap) {
		return Verdict{Close: true, Reason: domain.CloseStopLoss, ExitPrice: pos.StopLoss}
	}

	if held := m.clock.Now().Sub(pos.OpenedAt); held >= m.cfg.MaxHoldTime {
		m.logger.Info("hold time limit reached",
			slog.Int64("ticket", pos.Ticket),
			slog.Duration("held", held),
		)
		return Verdict{Close: true, Reason: domain.CloseTimeLimit, ExitPrice: m.marketExit(pos, snap)}
	}

	if kind, ok := m.exhausted(pos, snap, profitPips); ok {
		m.logger.Info("order flow exhaustion detected",
			slog.Int64("ticket", pos.Ticket),
			slog.String("kind", string(kind)),
			slog.Float64("profit_pips", profitPips),
		)
		return Verdict{Close: true, Reason: domain.CloseExhaustion, Kind: kind, ExitPrice: m.marketExit(pos, snap)}
	}

	m.maintainTrail(ctx, pos, profitPips)
	return Verdict{}
}

// Close closes the position at the venue. On failure the position stays
// tracked and the next tick re-evaluates it.
func (m *Monitor) Close(ctx context.Context, pos domain.Position, reason domain.CloseReason) error {
	if err := m.broker.ClosePosition(ctx, pos.Ticket); err != nil {
		return fmt.Errorf("position: close ticket %d (%s): %w", pos.Ticket, reason, err)
	}
	m.Forget(pos.Ticket)
	return nil
}

// Forget drops per-ticket state after a confirmed close.
func (m *Monitor) Forget(ticket int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trailed, ticket)
}

// profitPips computes the signed open profit in pips from the tradable side
// of the book.
func (m *Monitor) profitPips(pos domain.Position, snap domain.MarketSnapshot) float64 {
	if pos.Direction == domain.DirectionLong {
		return (snap.Bid - pos.EntryPrice) / m.cfg.PipSize
	}
	return (pos.EntryPrice - snap.Ask) / m.cfg.PipSize
}

// stopCrossed reports whether the last bar's extreme traded through the stop.
// Bar extremes catch intrabar crossings that the top-of-book quote misses.
func (m *Monitor) stopCrossed(pos domain.Position, snap domain.MarketSnapshot) bool {
	if pos.StopLoss <= 0 {
		return false
	}
	low, high := snap.LastBar.Low, snap.LastBar.High
	if low == 0 && high == 0 {
		low, high = snap.Bid, snap.Ask
	}
	if pos.Direction == domain.DirectionLong {
		return low <= pos.StopLoss
	}
	return high >= pos.StopLoss
}

// marketExit is the price a market close would fill at right now.
func (m *Monitor) marketExit(pos domain.Position, snap domain.MarketSnapshot) float64 {
	if pos.Direction == domain.DirectionLong {
		return snap.Bid
	}
	return snap.Ask
}

// exhausted runs the three flow-exhaustion checks. It only fires once the
// position has enough profit to be worth protecting and the history buffers
// have enough samples to be meaningful.
func (m *Monitor) exhausted(pos domain.Position, snap domain.MarketSnapshot, profitPips float64) (domain.ExhaustionKind, bool) {
	if profitPips < m.cfg.MinProfitPips {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history
	if h.Volumes.Len() < m.cfg.MinSamples {
		return "", false
	}

	if recent := h.Volumes.TailMean(shortWindow); recent < m.cfg.VolumeDropRatio*h.Volumes.TailMean(longWindow) {
		return domain.ExhaustionVolume, true
	}
	if snap.Spread > m.cfg.SpreadWidenRatio*h.Spreads.TailMean(longWindow) {
		return domain.ExhaustionSpread, true
	}
	if h.Prices.TailRange(shortWindow) < m.cfg.StallRangePips*m.cfg.PipSize {
		return domain.ExhaustionStall, true
	}
	return "", false
}

// maintainTrail moves the stop to breakeven plus a buffer once the position
// is sufficiently in profit. Applied at most once per ticket; a failed
// modification is retried on the next tick.
func (m *Monitor) maintainTrail(ctx context.Context, pos domain.Position, profitPips float64) {
	if profitPips < m.cfg.TrailActivatePips {
		return
	}

	m.mu.Lock()
	done := m.trailed[pos.Ticket]
	m.mu.Unlock()
	if done {
		return
	}

	buffer := m.cfg.TrailBufferPips * m.cfg.PipSize
	var newStop float64
	if pos.Direction == domain.DirectionLong {
		newStop = pos.EntryPrice + buffer
		if newStop <= pos.StopLoss {
			return
		}
	} else {
		newStop = pos.EntryPrice - buffer
		if pos.StopLoss > 0 && newStop >= pos.StopLoss {
			return
		}
	}

	if err := m.broker.ModifyStopLoss(ctx, pos.Ticket, newStop); err != nil {
		m.logger.Warn("trailing stop modification failed",
			slog.Int64("ticket", pos.Ticket),
			slog.String("error", err.Error()),
		)
		return
	}

	m.mu.Lock()
	m.trailed[pos.Ticket] = true
	m.mu.Unlock()

	m.logger.Info("stop moved to breakeven",
		slog.Int64("ticket", pos.Ticket),
		slog.Float64("new_stop", newStop),
		slog.Float64("profit_pips", profitPips),
	)
}

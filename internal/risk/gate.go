// Package risk enforces the account-protection rules that gate every trade:
// daily loss limits, a permanent lifetime drawdown halt, trade frequency caps,
// and risk-proportional position sizing.
package risk

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
)

// pipValuePerLot is the account-currency value of one pip for one standard
// lot on a USD-quoted pair.
const pipValuePerLot = 10.0

// Config holds the gate's protection parameters.
type Config struct {
	RiskPerTrade     float64 // fraction of balance risked per trade
	MaxDailyLoss     float64 // fraction of the day's starting balance
	MaxTotalDrawdown float64 // fraction of the lifetime starting balance
	MaxTradesPerDay  int
	MinTradeInterval time.Duration
	MinLot           float64
	MaxLot           float64
}

// Gate is the single authority on whether a new trade may be opened. All
// methods are safe for concurrent use.
type Gate struct {
	cfg    Config
	clock  domain.Clock
	logger *slog.Logger

	mu    sync.Mutex
	state domain.RiskDayState
}

// NewGate creates a Gate with empty state. Call Bootstrap or ResetDaily
// before the first CanTrade.
func NewGate(cfg Config, clock domain.Clock, logger *slog.Logger) *Gate {
	return &Gate{
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(slog.String("component", "risk_gate")),
	}
}

// dayKey formats a time as the gate's day bucket.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Bootstrap restores persisted state. A state from a previous day keeps its
// lifetime fields (start balance, high water, halt latch) but gets fresh
// daily counters seeded from balance.
func (g *Gate) Bootstrap(state domain.RiskDayState, balance float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	today := dayKey(g.clock.Now())
	if state.Date == today {
		g.state = state
		g.logger.Info("risk state restored for current day",
			slog.String("date", state.Date),
			slog.Int("trade_count", state.TradeCount),
			slog.Float64("realized_loss", state.RealizedLoss),
		)
		return
	}

	g.state = domain.RiskDayState{
		Date:             today,
		StartingBalance:  balance,
		LifetimeStart:    state.LifetimeStart,
		HighWaterBalance: math.Max(state.HighWaterBalance, balance),
		Halted:           state.Halted,
	}
	if g.state.LifetimeStart == 0 {
		g.state.LifetimeStart = balance
	}
	g.logger.Info("risk state rolled to new day",
		slog.String("date", today),
		slog.Float64("starting_balance", balance),
	)
}

// ResetDaily starts a fresh trading day. The lifetime drawdown latch is never
// cleared by a daily reset.
func (g *Gate) ResetDaily(balance float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.LifetimeStart == 0 {
		g.state.LifetimeStart = balance
	}
	g.state = domain.RiskDayState{
		Date:             dayKey(g.clock.Now()),
		StartingBalance:  balance,
		LifetimeStart:    g.state.LifetimeStart,
		HighWaterBalance: math.Max(g.state.HighWaterBalance, balance),
		Halted:           g.state.Halted,
	}
}

// NeedsRollover reports whether the tracked day is behind the clock.
func (g *Gate) NeedsRollover() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Date != dayKey(g.clock.Now())
}

// UpdateBalance feeds the latest account balance into the lifetime drawdown
// check. Crossing the drawdown limit sets the permanent halt latch.
func (g *Gate) UpdateBalance(balance float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if balance > g.state.HighWaterBalance {
		g.state.HighWaterBalance = balance
	}
	if g.state.Halted || g.state.LifetimeStart <= 0 {
		return
	}

	dd := (g.state.LifetimeStart - balance) / g.state.LifetimeStart
	if dd >= g.cfg.MaxTotalDrawdown {
		g.state.Halted = true
		g.logger.Error("lifetime drawdown limit breached, trading halted permanently",
			slog.Float64("drawdown", dd),
			slog.Float64("limit", g.cfg.MaxTotalDrawdown),
			slog.Float64("balance", balance),
		)
	}
}

// CanTrade evaluates the protection rules in order of severity and returns
// whether a new trade may open, with a human-readable reason on refusal.
func (g *Gate) CanTrade() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Halted {
		return false, "trading halted: lifetime drawdown limit reached"
	}

	if g.state.StartingBalance > 0 {
		limit := g.state.StartingBalance * g.cfg.MaxDailyLoss
		if g.state.RealizedLoss >= limit {
			return false, fmt.Sprintf("daily loss limit reached: %.2f >= %.2f", g.state.RealizedLoss, limit)
		}
	}

	if g.state.TradeCount >= g.cfg.MaxTradesPerDay {
		return false, fmt.Sprintf("daily trade cap reached: %d trades", g.state.TradeCount)
	}

	if !g.state.LastTradeAt.IsZero() {
		since := g.clock.Now().Sub(g.state.LastTradeAt)
		if since < g.cfg.MinTradeInterval {
			return false, fmt.Sprintf("trade interval not elapsed: %s since last trade, need %s",
				since.Round(time.Second), g.cfg.MinTradeInterval)
		}
	}

	return true, ""
}

// LotSize computes the position volume that risks RiskPerTrade of balance
// given the stop distance in pips, rounded to two decimals and clamped to
// the broker's lot bounds.
func (g *Gate) LotSize(balance, stopPips float64) float64 {
	if stopPips <= 0 || balance <= 0 {
		return g.cfg.MinLot
	}
	riskAmount := balance * g.cfg.RiskPerTrade
	lots := riskAmount / (stopPips * pipValuePerLot)
	lots = math.Round(lots*100) / 100

	if lots < g.cfg.MinLot {
		return g.cfg.MinLot
	}
	if lots > g.cfg.MaxLot {
		return g.cfg.MaxLot
	}
	return lots
}

// RecordTrade books an opened trade against the daily counters. Call again
// with the realized profit at close; losses accumulate toward the daily
// loss limit.
func (g *Gate) RecordTrade() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.TradeCount++
	g.state.LastTradeAt = g.clock.Now()
}

// RecordResult books a closed trade's realized profit.
func (g *Gate) RecordResult(profit float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if profit < 0 {
		g.state.RealizedLoss += -profit
	}
}

// DayState returns a snapshot of the current state for persistence.
func (g *Gate) DayState() domain.RiskDayState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// ChallengeProgress reports account growth since the lifetime start as a
// fraction, e.g. 0.25 for 25% growth. Returns 0 before the first balance
// is observed.
func (g *Gate) ChallengeProgress(balance float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.LifetimeStart <= 0 {
		return 0
	}
	return (balance - g.state.LifetimeStart) / g.state.LifetimeStart
}

// Package trader runs the live trading loop. Each poll gathers one market
// snapshot and pushes it through the same fixed sequence: record, manage the
// open position, then look for a new entry. At most one position is ever open.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
	"github.com/selimyuksel/iofae/internal/notify"
	"github.com/selimyuksel/iofae/internal/position"
	"github.com/selimyuksel/iofae/internal/risk"
)

// pipValuePerLot is the account-currency value of one pip for one standard
// lot on a USD-quoted pair.
const pipValuePerLot = 10.0

// SignalSource produces trade signals from market snapshots.
type SignalSource interface {
	Generate(ctx context.Context, snap domain.MarketSnapshot) *domain.TradeSignal
}

// ExitManager watches the open position and decides when it must close.
type ExitManager interface {
	Observe(snap domain.MarketSnapshot)
	EvaluateTick(ctx context.Context, pos domain.Position, snap domain.MarketSnapshot) position.Verdict
	Close(ctx context.Context, pos domain.Position, reason domain.CloseReason) error
	Forget(ticket int64)
}

// DepthArchiver moves aged depth snapshots to cold storage.
type DepthArchiver interface {
	Archive(ctx context.Context, before time.Time) (int64, error)
}

// Config holds the loop parameters.
type Config struct {
	Symbol             string
	PipSize            float64
	PollInterval       time.Duration
	DepthRetentionDays int

	// EntriesDisabled keeps the loop managing exits, persistence, and
	// rollover without ever opening a new position. Monitor mode sets it.
	EntriesDisabled bool
}

// Deps aggregates everything the loop drives.
type Deps struct {
	Market    domain.MarketData
	Broker    domain.Broker
	Signals   SignalSource
	Monitor   ExitManager
	Gate      *risk.Gate
	Trades    domain.TradeStore
	Depth     domain.DepthStore
	DayStats  domain.DayStatsStore
	Snapshots domain.SnapshotCache
	Positions domain.PositionCache
	RiskState domain.RiskStateCache
	Locks     domain.LockManager
	Notifier  *notify.Notifier
	Archiver  DepthArchiver // optional
	Clock     domain.Clock
}

// Trader is the live trading loop.
type Trader struct {
	cfg    Config
	d      Deps
	logger *slog.Logger

	// open is the single managed position, nil when flat. Only the loop
	// goroutine touches it.
	open    *domain.Position
	started time.Time

	// lastBlockReason deduplicates risk alerts while the same rule blocks.
	lastBlockReason string
}

// New creates a Trader.
func New(cfg Config, deps Deps, logger *slog.Logger) *Trader {
	return &Trader{
		cfg:    cfg,
		d:      deps,
		logger: logger.With(slog.String("component", "trader")),
	}
}

// Run acquires the account lock, bootstraps state, and polls until the
// context is cancelled. Two instances can never manage the same account: the
// second one fails here with ErrLockHeld.
func (t *Trader) Run(ctx context.Context) error {
	unlock, err := t.d.Locks.Acquire(ctx, "account:"+t.cfg.Symbol, 0)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("trader: another instance is managing %s: %w", t.cfg.Symbol, err)
		}
		return fmt.Errorf("trader: acquire account lock: %w", err)
	}
	defer unlock()

	if err := t.bootstrap(ctx); err != nil {
		return err
	}

	t.started = t.d.Clock.Now()
	t.logger.Info("trading loop started",
		slog.String("symbol", t.cfg.Symbol),
		slog.Duration("poll_interval", t.cfg.PollInterval),
	)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.shutdown()
			return nil
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// bootstrap restores risk state and resumes any position left open by a
// previous run.
func (t *Trader) bootstrap(ctx context.Context) error {
	acct, err := t.d.Market.AccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("trader: bootstrap account info: %w", err)
	}

	state, err := t.d.RiskState.Load(ctx)
	switch {
	case err == nil:
		// restored from cache
	case errors.Is(err, domain.ErrNotFound):
		state = t.rebuildRiskState(ctx, acct.Balance)
	default:
		t.logger.Warn("risk state load failed, rebuilding from trade history",
			slog.String("error", err.Error()))
		state = t.rebuildRiskState(ctx, acct.Balance)
	}

	t.d.Gate.Bootstrap(state, acct.Balance)
	t.saveRiskState(ctx)
	t.resumePositions(ctx)
	return nil
}

// rebuildRiskState reconstructs today's counters from the trade history when
// the cache is cold, so a restart mid-day cannot bypass the daily limits.
func (t *Trader) rebuildRiskState(ctx context.Context, balance float64) domain.RiskDayState {
	day := t.d.Clock.Now().UTC().Format("2006-01-02")
	state := domain.RiskDayState{Date: day, StartingBalance: balance}

	stats, err := t.d.Trades.TodayStats(ctx, day)
	if err != nil {
		t.logger.Warn("today stats unavailable during bootstrap", slog.String("error", err.Error()))
		return state
	}
	state.TradeCount = stats.TotalTrades
	if stats.TotalProfit < 0 {
		state.RealizedLoss = -stats.TotalProfit
	}

	if last, err := t.d.Trades.LastTradeTime(ctx); err == nil {
		if last.UTC().Format("2006-01-02") == day {
			state.LastTradeAt = last
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		t.logger.Warn("last trade time unavailable during bootstrap", slog.String("error", err.Error()))
	}

	return state
}

// resumePositions reattaches to positions left open at the venue, restoring
// entry metadata from the position cache.
func (t *Trader) resumePositions(ctx context.Context) {
	live, err := t.d.Broker.OpenPositions(ctx, t.cfg.Symbol)
	if err != nil {
		t.logger.Warn("open position query failed during bootstrap", slog.String("error", err.Error()))
		return
	}
	if len(live) == 0 {
		return
	}
	if len(live) > 1 {
		t.logger.Error("multiple open positions found, managing only the first",
			slog.Int("count", len(live)))
	}

	pos := live[0]
	if state, err := t.d.Positions.Load(ctx, pos.Ticket); err == nil {
		if pos.OpenedAt.IsZero() {
			pos.OpenedAt = state.OpenedAt
		}
		pos.ZoneType = state.ZoneType
		pos.Score = state.Score
		if pos.StopLoss == 0 {
			pos.StopLoss = state.StopLoss
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		t.logger.Warn("position state load failed", slog.String("error", err.Error()))
	}

	t.open = &pos
	t.logger.Info("resumed open position",
		slog.Int64("ticket", pos.Ticket),
		slog.String("direction", string(pos.Direction)),
		slog.Float64("entry", pos.EntryPrice),
	)
}

// tick runs one poll cycle.
func (t *Trader) tick(ctx context.Context) {
	snap, err := t.d.Market.Snapshot(ctx)
	if err != nil {
		t.logger.Warn("snapshot failed", slog.String("error", err.Error()))
		return
	}

	t.d.Monitor.Observe(snap)
	if err := t.d.Snapshots.Set(ctx, snap); err != nil {
		t.logger.Warn("snapshot cache write failed", slog.String("error", err.Error()))
	}
	if snap.HasBook() {
		t.persistDepth(ctx, snap)
	}

	acct, acctErr := t.d.Market.AccountInfo(ctx)
	if acctErr != nil {
		t.logger.Warn("account info failed", slog.String("error", acctErr.Error()))
	} else {
		if t.d.Gate.NeedsRollover() {
			t.rollover(ctx, acct.Balance)
		}
		t.d.Gate.UpdateBalance(acct.Balance)
	}

	t.refreshOpen(ctx)
	if t.open != nil {
		t.manageExit(ctx, snap)
		return
	}

	if t.cfg.EntriesDisabled {
		return
	}
	if acctErr != nil {
		// No balance means no sizing; exits above still ran.
		return
	}

	if allowed, reason := t.d.Gate.CanTrade(); !allowed {
		t.logger.Debug("entry blocked", slog.String("reason", reason))
		if reason != t.lastBlockReason {
			t.lastBlockReason = reason
			if err := t.d.Notifier.RiskAlert(ctx, reason); err != nil {
				t.logger.Warn("risk alert notification failed", slog.String("error", err.Error()))
			}
		}
		return
	}
	t.lastBlockReason = ""

	sig := t.d.Signals.Generate(ctx, snap)
	if sig == nil {
		return
	}
	t.execute(ctx, sig, acct.Balance)
}

// refreshOpen reconciles the tracked position against the venue. A tracked
// position missing from the venue list was closed server side, usually by the
// resting stop.
func (t *Trader) refreshOpen(ctx context.Context) {
	if t.open == nil {
		return
	}

	live, err := t.d.Broker.OpenPositions(ctx, t.cfg.Symbol)
	if err != nil {
		t.logger.Warn("open position query failed", slog.String("error", err.Error()))
		return
	}

	for _, p := range live {
		if p.Ticket != t.open.Ticket {
			continue
		}
		t.open.CurrentPrice = p.CurrentPrice
		t.open.Profit = p.Profit
		t.open.Pips = p.Pips
		if p.StopLoss > 0 {
			t.open.StopLoss = p.StopLoss
		}
		return
	}

	t.finalizeExternalClose(ctx)
}

// finalizeExternalClose books a position the venue closed on its own, with
// the last venue-reported profit as the result.
func (t *Trader) finalizeExternalClose(ctx context.Context) {
	pos := *t.open
	t.open = nil
	t.d.Monitor.Forget(pos.Ticket)

	t.logger.Info("position closed at the venue",
		slog.Int64("ticket", pos.Ticket),
		slog.Float64("profit", pos.Profit),
	)

	t.recordClose(ctx, pos, domain.CloseStopLoss, pos.StopLoss, pos.Profit, pos.Pips)
}

// manageExit evaluates the open position and closes it when a verdict fires.
// A failed close keeps the position tracked for the next tick.
func (t *Trader) manageExit(ctx context.Context, snap domain.MarketSnapshot) {
	pos := *t.open

	verdict := t.d.Monitor.EvaluateTick(ctx, pos, snap)
	if !verdict.Close {
		return
	}

	if err := t.d.Monitor.Close(ctx, pos, verdict.Reason); err != nil {
		t.logger.Warn("close failed, retrying next tick",
			slog.Int64("ticket", pos.Ticket),
			slog.String("error", err.Error()),
		)
		return
	}

	pips := t.exitPips(pos, verdict.ExitPrice)
	profit := pips * pos.Volume * pipValuePerLot
	t.open = nil

	t.logger.Info("position closed",
		slog.Int64("ticket", pos.Ticket),
		slog.String("reason", string(verdict.Reason)),
		slog.Float64("exit", verdict.ExitPrice),
		slog.Float64("pips", pips),
	)

	t.recordClose(ctx, pos, verdict.Reason, verdict.ExitPrice, profit, pips)
}

// recordClose persists and reports a close. Storage failures never block the
// loop.
func (t *Trader) recordClose(ctx context.Context, pos domain.Position, reason domain.CloseReason, exitPrice, profit, pips float64) {
	if err := t.d.Trades.RecordClose(ctx, pos.Ticket, exitPrice, profit, pips, reason); err != nil {
		t.logger.Warn("trade close record failed", slog.String("error", err.Error()))
	}
	t.d.Gate.RecordResult(profit)
	if err := t.d.Positions.Delete(ctx, pos.Ticket); err != nil {
		t.logger.Warn("position cache delete failed", slog.String("error", err.Error()))
	}
	t.saveRiskState(ctx)

	if err := t.d.Notifier.TradeClosed(ctx, pos, reason, profit, pips); err != nil {
		t.logger.Warn("trade close notification failed", slog.String("error", err.Error()))
	}
}

// execute sizes and places the order for a signal, then books the opened
// position.
func (t *Trader) execute(ctx context.Context, sig *domain.TradeSignal, balance float64) {
	stopPips := math.Abs(sig.EntryPrice-sig.StopLoss) / t.cfg.PipSize
	lots := t.d.Gate.LotSize(balance, stopPips)

	ticket, err := t.d.Broker.OpenPosition(ctx, domain.OpenRequest{
		Symbol:    sig.Symbol,
		Direction: sig.Direction,
		Volume:    lots,
		Price:     sig.EntryPrice,
		StopLoss:  sig.StopLoss,
		Comment:   string(sig.Zone.Type),
	})
	if err != nil {
		if errors.Is(err, domain.ErrOrderRejected) {
			t.logger.Warn("order rejected",
				slog.String("signal", sig.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		t.logger.Error("order placement failed",
			slog.String("signal", sig.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	now := t.d.Clock.Now()
	pos := domain.Position{
		Ticket:     ticket,
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		Volume:     lots,
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		OpenedAt:   now,
		ZoneType:   sig.Zone.Type,
		Score:      sig.Confidence,
	}
	t.open = &pos
	t.d.Gate.RecordTrade()

	t.logger.Info("position opened",
		slog.Int64("ticket", ticket),
		slog.String("direction", string(sig.Direction)),
		slog.Float64("lots", lots),
		slog.Float64("entry", sig.EntryPrice),
		slog.Float64("stop", sig.StopLoss),
		slog.Float64("confidence", sig.Confidence),
	)

	if err := t.d.Trades.RecordOpen(ctx, domain.TradeRecord{
		Ticket:     ticket,
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		LotSize:    lots,
		EntryPrice: sig.EntryPrice,
		StopLoss:   sig.StopLoss,
		EntryTime:  now,
		Score:      sig.Confidence,
		ZoneType:   sig.Zone.Type,
		Open:       true,
	}); err != nil {
		t.logger.Warn("trade open record failed", slog.String("error", err.Error()))
	}

	if err := t.d.Positions.Save(ctx, domain.PositionState{
		Ticket:   ticket,
		Symbol:   sig.Symbol,
		OpenedAt: now,
		ZoneType: sig.Zone.Type,
		Score:    sig.Confidence,
		StopLoss: sig.StopLoss,
	}); err != nil {
		t.logger.Warn("position cache save failed", slog.String("error", err.Error()))
	}

	t.saveRiskState(ctx)

	if err := t.d.Notifier.TradeOpened(ctx, *sig, ticket, lots); err != nil {
		t.logger.Warn("trade open notification failed", slog.String("error", err.Error()))
	}
}

// rollover flushes the finished day's aggregate, resets the daily counters,
// and applies the depth retention policy.
func (t *Trader) rollover(ctx context.Context, balance float64) {
	prev := t.d.Gate.DayState()

	stats, err := t.d.Trades.TodayStats(ctx, prev.Date)
	if err != nil {
		t.logger.Warn("day stats query failed during rollover", slog.String("error", err.Error()))
	} else {
		stats.Date = prev.Date
		stats.StartingBalance = prev.StartingBalance
		stats.EndingBalance = balance
		if prev.StartingBalance > 0 {
			stats.MaxDrawdownPct = prev.RealizedLoss / prev.StartingBalance
		}
		if err := t.d.DayStats.Upsert(ctx, stats); err != nil {
			t.logger.Warn("day stats flush failed", slog.String("error", err.Error()))
		}
		if err := t.d.Notifier.DailySummary(ctx, stats, t.d.Gate.ChallengeProgress(balance)); err != nil {
			t.logger.Warn("daily summary notification failed", slog.String("error", err.Error()))
		}
	}

	t.d.Gate.ResetDaily(balance)
	t.saveRiskState(ctx)
	t.logger.Info("rolled over to new trading day", slog.Float64("starting_balance", balance))

	t.pruneDepth(ctx)
}

// pruneDepth archives depth snapshots older than the retention window, then
// deletes them. Rows are only deleted after a successful archive.
func (t *Trader) pruneDepth(ctx context.Context) {
	if t.cfg.DepthRetentionDays <= 0 {
		return
	}
	cutoff := t.d.Clock.Now().UTC().AddDate(0, 0, -t.cfg.DepthRetentionDays)

	if t.d.Archiver != nil {
		n, err := t.d.Archiver.Archive(ctx, cutoff)
		if err != nil {
			t.logger.Warn("depth archive failed, keeping rows", slog.String("error", err.Error()))
			return
		}
		if n > 0 {
			t.logger.Info("depth snapshots archived", slog.Int64("records", n))
		}
	}

	deleted, err := t.d.Depth.DeleteBefore(ctx, cutoff)
	if err != nil {
		t.logger.Warn("depth prune failed", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		t.logger.Info("depth snapshots pruned", slog.Int64("rows", deleted))
	}
}

// persistDepth flattens the snapshot's book into per-level rows.
func (t *Trader) persistDepth(ctx context.Context, snap domain.MarketSnapshot) {
	rows := make([]domain.DepthSnapshot, 0, len(snap.Bids)+len(snap.Asks))
	for i, l := range snap.Bids {
		rows = append(rows, domain.DepthSnapshot{
			Symbol:     snap.Symbol,
			Timestamp:  snap.Timestamp,
			PriceLevel: l.Price,
			BidVolume:  l.Volume,
			LevelIndex: i,
		})
	}
	for i, l := range snap.Asks {
		rows = append(rows, domain.DepthSnapshot{
			Symbol:     snap.Symbol,
			Timestamp:  snap.Timestamp,
			PriceLevel: l.Price,
			AskVolume:  l.Volume,
			LevelIndex: i,
		})
	}

	if err := t.d.Depth.InsertBatch(ctx, rows); err != nil {
		t.logger.Warn("depth insert failed", slog.String("error", err.Error()))
	}
}

// exitPips is the signed result in pips for a fill at the given price.
func (t *Trader) exitPips(pos domain.Position, exitPrice float64) float64 {
	if pos.Direction == domain.DirectionLong {
		return (exitPrice - pos.EntryPrice) / t.cfg.PipSize
	}
	return (pos.EntryPrice - exitPrice) / t.cfg.PipSize
}

// saveRiskState persists the gate state so daily counters survive a restart.
func (t *Trader) saveRiskState(ctx context.Context) {
	if err := t.d.RiskState.Save(ctx, t.d.Gate.DayState()); err != nil {
		t.logger.Warn("risk state save failed", slog.String("error", err.Error()))
	}
}

// shutdown persists state and reports the stop. An open position is left to
// its resting stop at the venue.
func (t *Trader) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.saveRiskState(ctx)

	if t.open != nil {
		t.logger.Info("leaving position open at the venue",
			slog.Int64("ticket", t.open.Ticket),
			slog.Float64("stop", t.open.StopLoss),
		)
	}

	uptime := t.d.Clock.Now().Sub(t.started)
	if err := t.d.Notifier.EngineStopped(ctx, "shutdown requested", uptime); err != nil {
		t.logger.Warn("stop notification failed", slog.String("error", err.Error()))
	}

	t.logger.Info("trading loop stopped", slog.Duration("uptime", uptime))
}

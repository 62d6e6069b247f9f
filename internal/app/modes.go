package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/selimyuksel/iofae/internal/domain"
	"github.com/selimyuksel/iofae/internal/position"
	"github.com/selimyuksel/iofae/internal/risk"
	"github.com/selimyuksel/iofae/internal/server"
	"github.com/selimyuksel/iofae/internal/signal"
	"github.com/selimyuksel/iofae/internal/trader"
	"github.com/selimyuksel/iofae/internal/zone"
)

// TradeMode runs the full trading loop plus the status HTTP server.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	g, ctx := errgroup.WithContext(ctx)
	clock := domain.ClockFunc(time.Now)

	scorer := a.buildScorer(deps)
	engine, err := a.buildSignalEngine(deps, scorer, clock)
	if err != nil {
		return err
	}
	gate := a.buildGate(clock)
	monitor := a.buildMonitor(deps, clock)

	traderDeps := trader.Deps{
		Market:    deps.Terminal,
		Broker:    deps.Terminal,
		Signals:   engine,
		Monitor:   monitor,
		Gate:      gate,
		Trades:    deps.Trades,
		Depth:     deps.Depth,
		DayStats:  deps.DayStats,
		Snapshots: deps.Snapshots,
		Positions: deps.Positions,
		RiskState: deps.RiskState,
		Locks:     deps.Locks,
		Notifier:  deps.Notifier,
		Clock:     clock,
	}
	if deps.Archiver != nil {
		traderDeps.Archiver = deps.Archiver
	}

	tr := trader.New(trader.Config{
		Symbol:             a.cfg.Trading.Symbol,
		PipSize:            a.cfg.Trading.PipSize,
		PollInterval:       a.cfg.Trading.PollInterval.Duration,
		DepthRetentionDays: a.cfg.S3.DepthRetentionDays,
	}, traderDeps, a.logger)

	g.Go(func() error {
		return tr.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, scorer, gate)
	}

	return g.Wait()
}

// MonitorMode resumes and manages positions left open at the venue, keeps the
// snapshot cache fresh, and serves the status API. No new entries are opened.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	clock := domain.ClockFunc(time.Now)

	scorer := a.buildScorer(deps)
	gate := a.buildGate(clock)
	monitor := a.buildMonitor(deps, clock)

	traderDeps := trader.Deps{
		Market:    deps.Terminal,
		Broker:    deps.Terminal,
		Monitor:   monitor,
		Gate:      gate,
		Trades:    deps.Trades,
		Depth:     deps.Depth,
		DayStats:  deps.DayStats,
		Snapshots: deps.Snapshots,
		Positions: deps.Positions,
		RiskState: deps.RiskState,
		Locks:     deps.Locks,
		Notifier:  deps.Notifier,
		Clock:     clock,
	}
	if deps.Archiver != nil {
		traderDeps.Archiver = deps.Archiver
	}

	tr := trader.New(trader.Config{
		Symbol:             a.cfg.Trading.Symbol,
		PipSize:            a.cfg.Trading.PipSize,
		PollInterval:       a.cfg.Trading.PollInterval.Duration,
		DepthRetentionDays: a.cfg.S3.DepthRetentionDays,
		EntriesDisabled:    true,
	}, traderDeps, a.logger)

	g.Go(func() error {
		return tr.Run(ctx)
	})

	// The status API is the point of monitor mode; it runs regardless of
	// server.enabled.
	a.startHTTPServer(ctx, g, deps, scorer, gate)

	return g.Wait()
}

// ScanMode takes one snapshot, scores the zone map around the current price,
// logs the qualifying zones, and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	scorer := a.buildScorer(deps)

	snap, err := deps.Terminal.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("scan mode: snapshot: %w", err)
	}

	zones := scorer.Scan(ctx, snap, a.cfg.Trading.ScanRangePips)
	a.logger.InfoContext(ctx, "zone scan complete",
		slog.String("symbol", snap.Symbol),
		slog.Float64("bid", snap.Bid),
		slog.Int("zones", len(zones)),
	)

	for _, z := range zones {
		a.logger.InfoContext(ctx, "zone",
			slog.Float64("price", z.Price),
			slog.Float64("score", z.Score),
			slog.String("type", string(z.Type)),
			slog.String("direction", string(z.Direction)),
			slog.Float64("trigger", z.TriggerPrice),
			slog.Float64("stop", z.StopLoss),
		)
	}

	return nil
}

// buildScorer assembles the zone scorer from config.
func (a *App) buildScorer(deps *Dependencies) *zone.Scorer {
	return zone.NewScorer(zone.Config{
		PipSize:            a.cfg.Trading.PipSize,
		DOMVolumeThreshold: a.cfg.Scoring.DOMVolumeThreshold,
		DeltaThreshold:     a.cfg.Scoring.DeltaThreshold,
		FibProximityPips:   a.cfg.Scoring.FibProximityPips,
		DepthLookbackDays:  a.cfg.Scoring.DepthLookbackDays,
		EntryOffsetPips:    a.cfg.Trading.EntryOffsetPips,
		StopLossPips:       a.cfg.Trading.StopLossPips,
	}, deps.Depth, a.logger)
}

// buildSignalEngine assembles the signal pipeline from config.
func (a *App) buildSignalEngine(deps *Dependencies, scorer *zone.Scorer, clock domain.Clock) (*signal.Engine, error) {
	sessions, err := signal.NewSessions(signal.SessionConfig{
		LondonOpenHour:  a.cfg.Sessions.LondonOpenHour,
		LondonCloseHour: a.cfg.Sessions.LondonCloseHour,
		NewYorkOpenHour: a.cfg.Sessions.NewYorkOpenHour,
		NewYorkClose:    a.cfg.Sessions.NewYorkClose,
		Blackouts:       a.cfg.Sessions.Blackouts,
	})
	if err != nil {
		return nil, fmt.Errorf("app: sessions: %w", err)
	}

	stopHunt := signal.NewStopHunt(signal.StopHuntConfig{
		Enabled:         a.cfg.StopHunt.Enabled,
		WindowStartHour: a.cfg.StopHunt.WindowStartHour,
		WindowDuration:  a.cfg.StopHunt.WindowDuration.Duration,
		MinBreakoutPips: a.cfg.StopHunt.MinBreakoutPips,
		MaxBreakoutPips: a.cfg.StopHunt.MaxBreakoutPips,
		Confidence:      a.cfg.StopHunt.Confidence,
		StopOffsetPips:  a.cfg.StopHunt.StopOffsetPips,
		PipSize:         a.cfg.Trading.PipSize,
	}, deps.Terminal, a.logger)

	corr := signal.NewCorrelation(signal.CorrelationConfig{
		Enabled:       a.cfg.Correlation.Enabled,
		Symbol:        a.cfg.Correlation.Symbol,
		Bars:          a.cfg.Correlation.Bars,
		FlatThreshold: a.cfg.Correlation.FlatThreshold,
	}, deps.Terminal, a.logger)

	return signal.NewEngine(signal.Config{
		Symbol:          a.cfg.Trading.Symbol,
		ScanRangePips:   a.cfg.Trading.ScanRangePips,
		MinScore:        a.cfg.Trading.MinSignalScore,
		ConfirmBonus:    a.cfg.Correlation.ConfirmBonus,
		ConflictPenalty: a.cfg.Correlation.ConflictPenalty,
	}, scorer, sessions, stopHunt, corr, deps.Zones, clock, a.logger), nil
}

// buildGate assembles the risk gate from config.
func (a *App) buildGate(clock domain.Clock) *risk.Gate {
	return risk.NewGate(risk.Config{
		RiskPerTrade:     a.cfg.Risk.RiskPerTrade,
		MaxDailyLoss:     a.cfg.Risk.MaxDailyLoss,
		MaxTotalDrawdown: a.cfg.Risk.MaxTotalDrawdown,
		MaxTradesPerDay:  a.cfg.Risk.MaxTradesPerDay,
		MinTradeInterval: a.cfg.Risk.MinTradeInterval.Duration,
		MinLot:           a.cfg.Risk.MinLot,
		MaxLot:           a.cfg.Risk.MaxLot,
	}, clock, a.logger)
}

// buildMonitor assembles the position monitor from config.
func (a *App) buildMonitor(deps *Dependencies, clock domain.Clock) *position.Monitor {
	return position.NewMonitor(position.Config{
		PipSize:           a.cfg.Trading.PipSize,
		MaxHoldTime:       a.cfg.Trading.MaxHoldTime.Duration,
		VolumeDropRatio:   a.cfg.Exhaustion.VolumeDropRatio,
		SpreadWidenRatio:  a.cfg.Exhaustion.SpreadWidenRatio,
		StallRangePips:    a.cfg.Exhaustion.StallRangePips,
		MinProfitPips:     a.cfg.Exhaustion.MinProfitPips,
		MinSamples:        a.cfg.Exhaustion.MinSamples,
		TrailActivatePips: a.cfg.Exhaustion.TrailActivatePips,
		TrailBufferPips:   a.cfg.Exhaustion.TrailBufferPips,
	}, deps.Terminal, clock, a.logger)
}

// startHTTPServer adds the status server and its shutdown watcher to the
// errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, scorer *zone.Scorer, gate *risk.Gate) {
	srv := server.New(server.Config{
		Port:          a.cfg.Server.Port,
		Symbol:        a.cfg.Trading.Symbol,
		ScanRangePips: a.cfg.Trading.ScanRangePips,
	}, server.Deps{
		Snapshots: deps.Snapshots,
		Positions: deps.Positions,
		Trades:    deps.Trades,
		Risk:      gate,
		Zones:     scorer,
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

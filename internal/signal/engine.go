// Package signal turns market snapshots into trade signals. The engine runs a
// fixed pipeline on every poll: session gate, blackout gate, stop hunt
// detection, zone scan, correlation adjustment, and the final confidence
// threshold. Most polls produce nothing; that is the normal outcome.
package signal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/selimyuksel/iofae/internal/domain"
	"github.com/selimyuksel/iofae/internal/zone"
)

// Config holds the engine's signal parameters.
type Config struct {
	Symbol          string
	ScanRangePips   int
	MinScore        float64
	ConfirmBonus    float64
	ConflictPenalty float64
}

// Engine generates trade signals.
type Engine struct {
	cfg      Config
	scorer   *zone.Scorer
	sessions *Sessions
	stopHunt *StopHunt
	corr     *Correlation
	zones    domain.ZoneStore
	clock    domain.Clock
	logger   *slog.Logger
}

// NewEngine wires the pipeline. zones may be nil to skip zone persistence.
func NewEngine(
	cfg Config,
	scorer *zone.Scorer,
	sessions *Sessions,
	stopHunt *StopHunt,
	corr *Correlation,
	zones domain.ZoneStore,
	clock domain.Clock,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		scorer:   scorer,
		sessions: sessions,
		stopHunt: stopHunt,
		corr:     corr,
		zones:    zones,
		clock:    clock,
		logger:   logger.With(slog.String("component", "signal_engine")),
	}
}

// Generate evaluates one snapshot. Returns nil when no signal qualifies.
func (e *Engine) Generate(ctx context.Context, snap domain.MarketSnapshot) *domain.TradeSignal {
	now := e.clock.Now()

	if !e.sessions.Active(now) {
		return nil
	}
	if e.sessions.Blackout(now) {
		e.logger.Debug("inside blackout window, skipping")
		return nil
	}

	if sig := e.tryStopHunt(ctx, snap); sig != nil {
		return sig
	}

	best := e.scorer.BestZone(ctx, snap, e.cfg.ScanRangePips, e.cfg.MinScore)
	if best == nil {
		return nil
	}

	corr := e.corr.Check(ctx, best.Direction)
	confidence := e.adjust(best.Score, corr)
	if confidence < e.cfg.MinScore {
		e.logger.Info("zone rejected after correlation adjustment",
			slog.Float64("zone_score", best.Score),
			slog.Float64("confidence", confidence),
			slog.String("correlation", string(corr.Status)),
		)
		return nil
	}

	sig := &domain.TradeSignal{
		ID:          uuid.NewString(),
		Symbol:      snap.Symbol,
		Timestamp:   now,
		Direction:   best.Direction,
		Zone:        *best,
		EntryPrice:  best.TriggerPrice,
		StopLoss:    best.StopLoss,
		Confidence:  confidence,
		Correlation: corr,
		Reason: fmt.Sprintf("%s zone at %.5f scored %.1f (correlation %s)",
			best.Type, best.Price, best.Score, corr.Status),
	}
	e.persistZone(ctx, snap, *best)
	e.logEmit(sig)
	return sig
}

// tryStopHunt short-circuits the pipeline when a liquidity sweep is in
// progress. Stop hunt signals carry a fixed confidence and skip the
// correlation check; the sweep itself is the evidence.
func (e *Engine) tryStopHunt(ctx context.Context, snap domain.MarketSnapshot) *domain.TradeSignal {
	ev, err := e.stopHunt.Detect(ctx, snap, e.clock.Now())
	if err != nil {
		e.logger.Warn("stop hunt detection failed", slog.String("error", err.Error()))
		return nil
	}
	if ev == nil {
		return nil
	}

	z := domain.ExecutionZone{
		Price:        ev.SweptLevel,
		Score:        ev.Confidence,
		Type:         ev.ZoneType,
		Direction:    ev.Direction,
		TriggerPrice: snap.Bid,
		StopLoss:     ev.StopLoss,
	}
	sig := &domain.TradeSignal{
		ID:          uuid.NewString(),
		Symbol:      snap.Symbol,
		Timestamp:   e.clock.Now(),
		Direction:   ev.Direction,
		Zone:        z,
		EntryPrice:  snap.Bid,
		StopLoss:    ev.StopLoss,
		Confidence:  ev.Confidence,
		Correlation: domain.CorrelationResult{Status: domain.CorrelationNeutral},
		Reason: fmt.Sprintf("%s: swept %.5f by %.1f pips",
			ev.ZoneType, ev.SweptLevel, ev.BreakoutPips),
	}
	e.persistZone(ctx, snap, z)
	e.logEmit(sig)
	return sig
}

// adjust applies the correlation bonus or penalty and clamps to [0, 100].
func (e *Engine) adjust(score float64, corr domain.CorrelationResult) float64 {
	switch corr.Status {
	case domain.CorrelationConfirmed:
		score += e.cfg.ConfirmBonus
	case domain.CorrelationConflicting:
		score -= e.cfg.ConflictPenalty
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// persistZone records the zone observation. Best effort: a storage failure
// never suppresses the signal.
func (e *Engine) persistZone(ctx context.Context, snap domain.MarketSnapshot, z domain.ExecutionZone) {
	if e.zones == nil {
		return
	}
	rec := domain.ZoneRecord{
		Symbol:     snap.Symbol,
		Timestamp:  e.clock.Now(),
		PriceLevel: z.Price,
		Score:      z.Score,
		Breakdown:  z.Breakdown,
		ZoneType:   z.Type,
	}
	if err := e.zones.Insert(ctx, rec); err != nil {
		e.logger.Warn("zone record insert failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) logEmit(sig *domain.TradeSignal) {
	e.logger.Info("signal emitted",
		slog.String("id", sig.ID),
		slog.String("direction", string(sig.Direction)),
		slog.String("zone_type", string(sig.Zone.Type)),
		slog.Float64("confidence", sig.Confidence),
		slog.Float64("entry", sig.EntryPrice),
		slog.Float64("stop", sig.StopLoss),
	)
}

package signal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
)

// StopHuntConfig holds the London-open stop hunt detection parameters.
type StopHuntConfig struct {
	Enabled         bool
	WindowStartHour int
	WindowDuration  time.Duration
	MinBreakoutPips float64
	MaxBreakoutPips float64
	Confidence      float64
	StopOffsetPips  float64
	PipSize         float64
}

// StopHuntEvent is a detected liquidity sweep past the prior day's extreme.
// The anticipated move is a reversal, so the trade direction runs counter to
// the breakout.
type StopHuntEvent struct {
	ZoneType     domain.ZoneType
	Direction    domain.Direction
	BreakoutPips float64
	SweptLevel   float64 // prior-day extreme that was run
	StopLoss     float64
	Confidence   float64
}

// StopHunt detects the brief liquidity sweeps past the prior day's high or
// low that institutional desks run in the first minutes of London trading.
type StopHunt struct {
	cfg    StopHuntConfig
	md     domain.MarketData
	logger *slog.Logger
}

// NewStopHunt creates the detector.
func NewStopHunt(cfg StopHuntConfig, md domain.MarketData, logger *slog.Logger) *StopHunt {
	return &StopHunt{
		cfg:    cfg,
		md:     md,
		logger: logger.With(slog.String("component", "stop_hunt")),
	}
}

// InWindow reports whether t falls inside the detection window.
func (s *StopHunt) InWindow(t time.Time) bool {
	if !s.cfg.Enabled {
		return false
	}
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), s.cfg.WindowStartHour, 0, 0, 0, time.UTC)
	return !u.Before(start) && u.Before(start.Add(s.cfg.WindowDuration))
}

// Detect checks the current price against yesterday's extremes. A breakout
// deeper than MaxBreakoutPips is a genuine range expansion, not a hunt, and
// is ignored. Returns nil when nothing qualifies.
func (s *StopHunt) Detect(ctx context.Context, snap domain.MarketSnapshot, now time.Time) (*StopHuntEvent, error) {
	if !s.InWindow(now) {
		return nil, nil
	}

	prev, err := s.md.DailyBar(ctx, snap.Symbol, 1)
	if err != nil {
		return nil, fmt.Errorf("signal: prior day bar for %s: %w", snap.Symbol, err)
	}

	pip := s.cfg.PipSize
	offset := s.cfg.StopOffsetPips * pip

	if above := (snap.Bid - prev.High) / pip; above > s.cfg.MinBreakoutPips && above <= s.cfg.MaxBreakoutPips {
		ev := &StopHuntEvent{
			ZoneType:     domain.ZoneStopHuntHigh,
			Direction:    domain.DirectionShort,
			BreakoutPips: above,
			SweptLevel:   prev.High,
			StopLoss:     snap.Bid + offset,
			Confidence:   s.cfg.Confidence,
		}
		s.log(ev)
		return ev, nil
	}

	if below := (prev.Low - snap.Bid) / pip; below > s.cfg.MinBreakoutPips && below <= s.cfg.MaxBreakoutPips {
		ev := &StopHuntEvent{
			ZoneType:     domain.ZoneStopHuntLow,
			Direction:    domain.DirectionLong,
			BreakoutPips: below,
			SweptLevel:   prev.Low,
			StopLoss:     snap.Bid - offset,
			Confidence:   s.cfg.Confidence,
		}
		s.log(ev)
		return ev, nil
	}

	return nil, nil
}

func (s *StopHunt) log(ev *StopHuntEvent) {
	s.logger.Info("stop hunt detected",
		slog.String("zone_type", string(ev.ZoneType)),
		slog.String("direction", string(ev.Direction)),
		slog.Float64("breakout_pips", ev.BreakoutPips),
		slog.Float64("swept_level", ev.SweptLevel),
	)
}

// Package zone scores candidate price levels for the likelihood that large
// resting institutional orders will execute there. The scorer is pure: it
// never mutates shared state, and a missing input (zero VWAP, no Fibonacci
// levels, failed depth query) zeroes that component instead of failing the
// whole score.
package zone

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/selimyuksel/iofae/internal/domain"
)

// Component maxima. The five components sum to at most 100.
const (
	VWAPMax  = 30.0
	RoundMax = 25.0
	FibMax   = 20.0
	DepthMax = 15.0
	DeltaMax = 10.0
)

// VWAP distance bands, as a fraction of VWAP. Index trackers tolerate only so
// much tracking error before they must transact; distance is the proxy for
// that forced-execution pressure.
const (
	vwapLow      = 0.001
	vwapHigh     = 0.002
	vwapCritical = 0.003
)

// confluenceFloor is the per-component score above which a component counts
// toward a CONFLUENCE_ZONE label.
const confluenceFloor = 15.0

// DepthQuerier answers the historical resting-volume question for the depth
// component. Implemented by the depth store; a stub returning 0 keeps the
// scorer fully deterministic in tests.
type DepthQuerier interface {
	AvgVolumeAtLevel(ctx context.Context, symbol string, level, tolerance float64, lookbackDays int) (float64, error)
}

// Config holds the tunable scoring and entry parameters.
type Config struct {
	PipSize            float64
	DOMVolumeThreshold float64 // resting lots at which depth saturates
	DeltaThreshold     float64 // absolute delta at which imbalance saturates
	FibProximityPips   float64
	DepthLookbackDays  int
	EntryOffsetPips    float64
	StopLossPips       float64
}

// Scorer computes ExecutionZones. Safe for concurrent use; all state is
// read-only after construction.
type Scorer struct {
	cfg    Config
	depth  DepthQuerier
	logger *slog.Logger
}

// NewScorer creates a Scorer. depth may be nil, in which case the historical
// depth component always scores zero.
func NewScorer(cfg Config, depth DepthQuerier, logger *slog.Logger) *Scorer {
	return &Scorer{
		cfg:    cfg,
		depth:  depth,
		logger: logger.With(slog.String("component", "zone_scorer")),
	}
}

// Score computes the execution probability for one candidate price level.
func (s *Scorer) Score(ctx context.Context, level float64, snap domain.MarketSnapshot) domain.ExecutionZone {
	var b domain.ScoreBreakdown

	b.VWAP = s.vwapScore(level, snap.VWAP)
	roundScore, roundType := s.roundNumberScore(level)
	b.RoundNumber = roundScore
	fibScore, fibRatio := s.fibScore(level, snap.Fibs)
	b.Fibonacci = fibScore
	b.DOMDepth = s.depthScore(ctx, snap.Symbol, level)
	b.DeltaImbalance = s.deltaScore(snap.BidAskDelta)

	zoneType := classify(b, roundType, fibRatio)
	direction := directionFor(level, snap.Bid)
	trigger := s.triggerPrice(level, direction)
	stop := s.stopLoss(trigger, direction)

	return domain.ExecutionZone{
		Price:        level,
		Score:        b.Total(),
		Breakdown:    b,
		Type:         zoneType,
		Direction:    direction,
		TriggerPrice: trigger,
		StopLoss:     stop,
	}
}

// vwapScore maps distance from VWAP onto [0, VWAPMax] through four
// piecewise-linear bands. Monotonically non-decreasing in the distance.
func (s *Scorer) vwapScore(level, vwap float64) float64 {
	if vwap == 0 {
		return 0
	}
	d := math.Abs(level-vwap) / vwap

	switch {
	case d >= vwapCritical:
		return VWAPMax
	case d >= vwapHigh:
		base := VWAPMax * 0.5
		frac := (d - vwapHigh) / (vwapCritical - vwapHigh)
		return base + VWAPMax*0.5*frac
	case d >= vwapLow:
		base := VWAPMax * 0.17
		frac := (d - vwapLow) / (vwapHigh - vwapLow)
		return base + VWAPMax*0.33*frac
	default:
		return d / vwapLow * (VWAPMax * 0.17)
	}
}

// roundNumberScore scores proximity to psychologically round levels. Large
// orders cluster at 50-pip intervals; exact 00 levels are the strongest.
func (s *Scorer) roundNumberScore(level float64) (float64, domain.ZoneType) {
	pips := int(math.Round(level / s.cfg.PipSize))
	lastTwo := pips % 100
	if lastTwo < 0 {
		lastTwo += 100
	}

	switch {
	case lastTwo == 0:
		return RoundMax, domain.ZoneInstitutional
	case lastTwo == 50:
		return RoundMax * 0.72, domain.ZoneRoundHalf
	case lastTwo == 25 || lastTwo == 75:
		return RoundMax * 0.40, domain.ZoneRoundQuarter
	case lastTwo%10 == 0:
		return RoundMax * 0.20, domain.ZoneRoundTenPip
	}

	// Decaying proximity bonus within 10 pips of the nearest 50-pip level.
	halfStep := 50 * s.cfg.PipSize
	nearest := math.Round(level/halfStep) * halfStep
	distance := math.Abs(level - nearest)
	window := 10 * s.cfg.PipSize
	if distance <= window {
		return RoundMax * 0.3 * (1 - distance/window), domain.ZoneRoundNear
	}
	return 0, ""
}

// fibWeight ranks retracement levels by importance.
func fibWeight(ratio float64) float64 {
	switch ratio {
	case 0.618:
		return 1.0
	case 0.5:
		return 0.85
	case 0.382:
		return 0.75
	case 0.786:
		return 0.70
	case 0.236:
		return 0.60
	default:
		return 0.5
	}
}

// fibScore keeps the best weighted proximity score across all retracement
// levels within the proximity window. Returns the winning ratio for labeling.
func (s *Scorer) fibScore(level float64, fibs []domain.FibLevel) (float64, float64) {
	if len(fibs) == 0 {
		return 0, 0
	}
	window := s.cfg.FibProximityPips * s.cfg.PipSize
	if window <= 0 {
		return 0, 0
	}

	var bestScore, bestRatio float64
	for _, f := range fibs {
		d := math.Abs(level - f.Price)
		if d > window {
			continue
		}
		score := FibMax * fibWeight(f.Ratio) * (1 - d/window)
		if score > bestScore {
			bestScore = score
			bestRatio = f.Ratio
		}
	}
	return bestScore, bestRatio
}

// depthScore queries average historical resting volume near the level and
// maps it onto [0, DepthMax] with a two-segment piecewise-linear shape that
// saturates at the configured threshold.
func (s *Scorer) depthScore(ctx context.Context, symbol string, level float64) float64 {
	if s.depth == nil || s.cfg.DOMVolumeThreshold <= 0 {
		return 0
	}

	tolerance := 5 * s.cfg.PipSize
	avg, err := s.depth.AvgVolumeAtLevel(ctx, symbol, level, tolerance, s.cfg.DepthLookbackDays)
	if err != nil {
		s.logger.Debug("depth query failed, scoring component as zero",
			slog.Float64("level", level),
			slog.String("error", err.Error()),
		)
		return 0
	}

	return saturating(avg, s.cfg.DOMVolumeThreshold, 0.6, DepthMax)
}

// deltaScore maps the absolute trailing bid/ask delta onto [0, DeltaMax].
func (s *Scorer) deltaScore(delta float64) float64 {
	if s.cfg.DeltaThreshold <= 0 {
		return 0
	}
	return saturating(math.Abs(delta), s.cfg.DeltaThreshold, 0.5, DeltaMax)
}

// saturating is the shared two-segment shape: full points at or above the
// threshold, a steeper linear segment between knee×threshold and threshold,
// and a shallower linear ramp below the knee.
func saturating(value, threshold, knee, max float64) float64 {
	kneeVol := threshold * knee
	switch {
	case value >= threshold:
		return max
	case value >= kneeVol:
		frac := (value - kneeVol) / (threshold - kneeVol)
		return max*knee + max*(1-knee)*frac
	case value > 0:
		return value / kneeVol * (max * knee)
	default:
		return 0
	}
}

// classify derives the zone label from the dominant component. A component
// only claims the label when it is meaningful on its own; otherwise two or
// more strong components make a confluence zone.
func classify(b domain.ScoreBreakdown, roundType domain.ZoneType, fibRatio float64) domain.ZoneType {
	type comp struct {
		name  string
		score float64
	}
	comps := []comp{
		{"vwap", b.VWAP},
		{"round_number", b.RoundNumber},
		{"fibonacci", b.Fibonacci},
		{"dom_depth", b.DOMDepth},
		{"delta_imbalance", b.DeltaImbalance},
	}
	best := comps[0]
	for _, c := range comps[1:] {
		if c.score > best.score {
			best = c
		}
	}

	switch best.name {
	case "vwap":
		if best.score >= VWAPMax*0.8 {
			return domain.ZoneVWAPReversion
		}
	case "round_number":
		if roundType != "" {
			return roundType
		}
	case "fibonacci":
		if fibRatio > 0 {
			return domain.ZoneType(fmt.Sprintf("%s%g", domain.ZoneFibPrefix, fibRatio))
		}
	case "dom_depth":
		return domain.ZoneDOMCluster
	case "delta_imbalance":
		return domain.ZoneDeltaImbalance
	}

	strong := 0
	for _, c := range comps {
		if c.score > confluenceFloor {
			strong++
		}
	}
	if strong >= 2 {
		return domain.ZoneConfluence
	}
	return domain.ZoneMixed
}

// directionFor anticipates travel toward the level: levels above the current
// bid are approached from below (LONG), levels below from above (SHORT).
func directionFor(level, bid float64) domain.Direction {
	if level > bid {
		return domain.DirectionLong
	}
	return domain.DirectionShort
}

// triggerPrice offsets the entry a few pips in front of the zone, against the
// anticipated direction, so the position is filled before the zone trades.
func (s *Scorer) triggerPrice(level float64, dir domain.Direction) float64 {
	offset := s.cfg.EntryOffsetPips * s.cfg.PipSize
	if dir == domain.DirectionLong {
		return level - offset
	}
	return level + offset
}

// stopLoss offsets the stop from the trigger in the risk direction.
func (s *Scorer) stopLoss(trigger float64, dir domain.Direction) float64 {
	offset := s.cfg.StopLossPips * s.cfg.PipSize
	if dir == domain.DirectionLong {
		return trigger - offset
	}
	return trigger + offset
}

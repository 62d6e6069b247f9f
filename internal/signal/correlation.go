package signal

import (
	"context"
	"log/slog"
	"math"

	"github.com/selimyuksel/iofae/internal/domain"
)

// CorrelationConfig holds the secondary-instrument confirmation parameters.
// The secondary instrument is assumed inversely correlated with the primary
// (a dollar index against a USD-quoted pair).
type CorrelationConfig struct {
	Enabled       bool
	Symbol        string
	Bars          int
	FlatThreshold float64
}

// Correlation confirms or contradicts a proposed trade direction using the
// short-term trend of an inversely correlated instrument. It is a confidence
// modifier only: an unavailable feed never blocks a signal.
type Correlation struct {
	cfg    CorrelationConfig
	md     domain.MarketData
	logger *slog.Logger
}

// NewCorrelation creates the checker.
func NewCorrelation(cfg CorrelationConfig, md domain.MarketData, logger *slog.Logger) *Correlation {
	return &Correlation{
		cfg:    cfg,
		md:     md,
		logger: logger.With(slog.String("component", "correlation")),
	}
}

// Check evaluates the proposed direction against the secondary trend.
func (c *Correlation) Check(ctx context.Context, proposed domain.Direction) domain.CorrelationResult {
	if !c.cfg.Enabled {
		return domain.CorrelationResult{Status: domain.CorrelationDisabled}
	}

	bars, err := c.md.RecentBars(ctx, c.cfg.Symbol, c.cfg.Bars)
	if err != nil || len(bars) < 2 {
		if err != nil {
			c.logger.Warn("secondary instrument bars unavailable",
				slog.String("symbol", c.cfg.Symbol),
				slog.String("error", err.Error()),
			)
		}
		return domain.CorrelationResult{Status: domain.CorrelationUnavailable}
	}

	net := bars[len(bars)-1].Close - bars[0].Close
	trend := domain.TrendFlat
	if math.Abs(net) > c.cfg.FlatThreshold {
		if net > 0 {
			trend = domain.TrendUp
		} else {
			trend = domain.TrendDown
		}
	}

	result := domain.CorrelationResult{Trend: trend, NetChange: net}
	if supports(proposed, trend) {
		result.Status = domain.CorrelationConfirmed
	} else {
		result.Status = domain.CorrelationConflicting
	}
	return result
}

// supports maps the inverse relationship: a falling secondary supports a
// long primary, a rising one supports a short. A flat secondary confirms
// either direction; only an opposing move contradicts the trade.
func supports(proposed domain.Direction, trend domain.TrendDirection) bool {
	if trend == domain.TrendFlat {
		return true
	}
	if proposed == domain.DirectionLong {
		return trend == domain.TrendDown
	}
	return trend == domain.TrendUp
}

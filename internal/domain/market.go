package domain

import "time"

// PriceLevel is a single price+volume entry in the order book.
type PriceLevel struct {
	Price  float64
	Volume float64
}

// Bar is one OHLC bar with tick volume.
type Bar struct {
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	TickVolume float64
}

// FibLevel is one Fibonacci retracement level derived from the 5-day swing.
type FibLevel struct {
	Ratio float64 // 0.236, 0.382, 0.5, 0.618, 0.786
	Price float64
}

// MarketSnapshot is the full market state produced on each poll. The producer
// keeps no history; any smoothing over snapshots is the consumer's job.
// A zero VWAP or empty Fibs means the input was unavailable for this poll.
type MarketSnapshot struct {
	Symbol    string
	Timestamp time.Time

	Bid    float64
	Ask    float64
	Spread float64

	// LastBar is the most recent 1-minute bar.
	LastBar Bar

	// VWAP is the session-to-date volume-weighted typical price.
	VWAP float64

	// BidAskDelta is the net bid-minus-ask volume over a trailing 10-second
	// window. Positive values indicate aggressive buying.
	BidAskDelta float64

	// SwingHigh and SwingLow span the last 5 daily bars.
	SwingHigh float64
	SwingLow  float64

	// Fibs are retracement levels between SwingHigh and SwingLow.
	Fibs []FibLevel

	// Book depth, optional. Empty when the venue provides no level-II data.
	Bids []PriceLevel
	Asks []PriceLevel
}

// HasBook reports whether the snapshot carries order-book depth.
func (s MarketSnapshot) HasBook() bool {
	return len(s.Bids) > 0 || len(s.Asks) > 0
}

// TrendDirection classifies a secondary instrument's short-term trend.
type TrendDirection string

const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendFlat TrendDirection = "FLAT"
)

package domain

import "time"

// TradeRecord is one row of trade history. Opened trades have a nil exit;
// RecordClose fills it in.
type TradeRecord struct {
	Ticket     int64
	Symbol     string
	Direction  Direction
	LotSize    float64
	EntryPrice float64
	ExitPrice  *float64
	StopLoss   float64
	EntryTime  time.Time
	ExitTime   *time.Time
	Profit     float64
	Pips       float64
	Score      float64
	ZoneType   ZoneType
	ExitReason CloseReason
	Open       bool
}

// DayStats aggregates one trading day.
type DayStats struct {
	Date            string // YYYY-MM-DD
	StartingBalance float64
	EndingBalance   float64
	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	TotalProfit     float64
	TotalPips       float64
	MaxDrawdownPct  float64
}

// WinRate returns the fraction of winning trades, or 0 with no trades.
func (s DayStats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades)
}

// DepthSnapshot is one order-book level observation persisted for the
// historical-depth scoring component.
type DepthSnapshot struct {
	Symbol     string
	Timestamp  time.Time
	PriceLevel float64
	BidVolume  float64
	AskVolume  float64
	LevelIndex int
}

// TotalVolume is the resting volume on both sides of the level.
func (d DepthSnapshot) TotalVolume() float64 {
	return d.BidVolume + d.AskVolume
}

// ZoneRecord is a persisted execution-zone observation: what the scorer saw
// at signal time, kept so outcomes can be studied after the fact.
type ZoneRecord struct {
	Symbol     string
	Timestamp  time.Time
	PriceLevel float64
	Score      float64
	Breakdown  ScoreBreakdown
	ZoneType   ZoneType
}

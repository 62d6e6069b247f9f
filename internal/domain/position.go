package domain

import "time"

// CloseReason explains why a position was (or should be) closed.
type CloseReason string

const (
	CloseStopLoss   CloseReason = "STOP_LOSS"
	CloseTimeLimit  CloseReason = "TIME_LIMIT"
	CloseExhaustion CloseReason = "EXHAUSTION"
	CloseManual     CloseReason = "MANUAL"
	CloseShutdown   CloseReason = "SHUTDOWN"
)

// ExhaustionKind qualifies which exhaustion sub-signal fired.
type ExhaustionKind string

const (
	ExhaustionVolume ExhaustionKind = "VOLUME_DROP"
	ExhaustionSpread ExhaustionKind = "SPREAD_WIDEN"
	ExhaustionStall  ExhaustionKind = "PRICE_STALL"
)

// Position is a live broker position under management. The position monitor
// is the sole mutator; everything else reads.
type Position struct {
	Ticket       int64
	Symbol       string
	Direction    Direction
	Volume       float64
	EntryPrice   float64
	CurrentPrice float64
	StopLoss     float64
	Profit       float64 // account-currency profit as reported by the venue
	Pips         float64 // signed pips in favor of the position
	OpenedAt     time.Time

	// Entry metadata, kept for persistence and notifications.
	ZoneType ZoneType
	Score    float64
}

// PositionState is the minimal tracking state persisted so an open position
// survives a process restart without losing its entry metadata.
type PositionState struct {
	Ticket   int64
	Symbol   string
	OpenedAt time.Time
	ZoneType ZoneType
	Score    float64
	StopLoss float64
}

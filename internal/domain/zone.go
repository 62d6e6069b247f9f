package domain

// Direction is the anticipated travel of price toward (and through) a zone.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// ZoneType labels the dominant reason a level is expected to attract
// institutional execution.
type ZoneType string

const (
	ZoneVWAPReversion    ZoneType = "VWAP_REVERSION"
	ZoneInstitutional    ZoneType = "INSTITUTIONAL_ROUND"
	ZoneRoundHalf        ZoneType = "ROUND_HALF_ROUND"
	ZoneRoundQuarter     ZoneType = "ROUND_QUARTER_ROUND"
	ZoneRoundTenPip      ZoneType = "ROUND_10PIP_LEVEL"
	ZoneRoundNear        ZoneType = "ROUND_NEAR_ROUND"
	ZoneDOMCluster       ZoneType = "DOM_CLUSTER"
	ZoneDeltaImbalance   ZoneType = "DELTA_IMBALANCE"
	ZoneConfluence       ZoneType = "CONFLUENCE_ZONE"
	ZoneMixed            ZoneType = "MIXED"
	ZoneStopHuntHigh     ZoneType = "STOP_HUNT_HIGH"
	ZoneStopHuntLow      ZoneType = "STOP_HUNT_LOW"
	ZoneFibPrefix                 = "FIB_" // FIB_0.618 etc., built by the scorer
)

// ScoreBreakdown holds the five bounded scoring components. Each field stays
// within [0, component max]; the 100-point cap applies to the sum only.
type ScoreBreakdown struct {
	VWAP           float64
	RoundNumber    float64
	Fibonacci      float64
	DOMDepth       float64
	DeltaImbalance float64
}

// Sum returns the uncapped component sum.
func (b ScoreBreakdown) Sum() float64 {
	return b.VWAP + b.RoundNumber + b.Fibonacci + b.DOMDepth + b.DeltaImbalance
}

// Total returns the component sum capped at 100.
func (b ScoreBreakdown) Total() float64 {
	if s := b.Sum(); s < 100 {
		return s
	}
	return 100
}

// ExecutionZone is a scored candidate price level. Zones are recomputed on
// every scan and never mutated after construction.
type ExecutionZone struct {
	Price     float64
	Score     float64
	Breakdown ScoreBreakdown
	Type      ZoneType
	Direction Direction

	// TriggerPrice is the entry level, offset a few pips in front of the
	// zone so the position is open before the anticipated execution burst.
	TriggerPrice float64
	StopLoss     float64
}

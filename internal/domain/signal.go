package domain

import "time"

// CorrelationStatus is the outcome of the secondary-instrument confirmation.
type CorrelationStatus string

const (
	CorrelationConfirmed   CorrelationStatus = "CONFIRMED"
	CorrelationNeutral     CorrelationStatus = "NEUTRAL"
	CorrelationConflicting CorrelationStatus = "CONFLICTING"
	CorrelationUnavailable CorrelationStatus = "UNAVAILABLE"
	CorrelationDisabled    CorrelationStatus = "DISABLED"
)

// Adjusts reports whether the status carries a confidence adjustment at all.
// Unavailable and disabled checks are neutral by contract: correlation is a
// modifier, never a hard gate.
func (s CorrelationStatus) Adjusts() bool {
	return s == CorrelationConfirmed || s == CorrelationConflicting
}

// CorrelationResult is the full verdict from the correlation check.
type CorrelationResult struct {
	Status    CorrelationStatus
	Trend     TrendDirection
	NetChange float64 // secondary instrument close-minus-open over the window
}

// Confirmed reports whether the verdict supports (or at least does not
// oppose) the proposed direction.
func (r CorrelationResult) Confirmed() bool {
	return r.Status != CorrelationConflicting
}

// TradeSignal is emitted by the signal engine to request order execution.
// It exists transiently: consumed once by the execution layer, then discarded.
type TradeSignal struct {
	ID        string // UUID for audit trails
	Symbol    string
	Timestamp time.Time
	Direction Direction
	Zone      ExecutionZone

	EntryPrice float64
	StopLoss   float64

	// Confidence is the zone score after the correlation adjustment.
	Confidence  float64
	Correlation CorrelationResult

	Reason string
}

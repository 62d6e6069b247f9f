package domain

import (
	"context"
	"time"
)

// AccountInfo is the trading account state reported by the venue.
type AccountInfo struct {
	Login    int64
	Balance  float64
	Equity   float64
	Currency string
}

// MarketData supplies market snapshots and historical bars. Implementations
// talk to an external trading terminal; the core only consumes these shapes.
type MarketData interface {
	// Snapshot returns a fresh market snapshot for the primary symbol.
	Snapshot(ctx context.Context) (MarketSnapshot, error)

	// RecentBars returns the last count closed 1-minute bars for any symbol,
	// oldest first. Used for the correlation instrument's trend.
	RecentBars(ctx context.Context, symbol string, count int) ([]Bar, error)

	// DailyBar returns the daily bar daysBack days in the past (1 = yesterday).
	DailyBar(ctx context.Context, symbol string, daysBack int) (Bar, error)

	// AccountInfo returns the current account state.
	AccountInfo(ctx context.Context) (AccountInfo, error)
}

// OpenRequest describes an order to place.
type OpenRequest struct {
	Symbol    string
	Direction Direction
	Volume    float64
	Price     float64
	StopLoss  float64
	Comment   string
}

// Broker places and closes positions at the execution venue. Calls are
// synchronous request/response; a failed or timed-out close leaves the
// position possibly still open and it must be re-queried, never assumed
// closed.
type Broker interface {
	OpenPosition(ctx context.Context, req OpenRequest) (ticket int64, err error)
	ClosePosition(ctx context.Context, ticket int64) error
	ModifyStopLoss(ctx context.Context, ticket int64, stopLoss float64) error
	OpenPositions(ctx context.Context, symbol string) ([]Position, error)
}

// Clock abstracts time for the session, blackout, and stop-hunt windows so
// they can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

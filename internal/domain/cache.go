package domain

import (
	"context"
	"time"
)

// SnapshotCache holds the latest market snapshot per symbol so the status
// surface can serve it without another terminal round trip.
type SnapshotCache interface {
	Set(ctx context.Context, snap MarketSnapshot) error
	Get(ctx context.Context, symbol string) (MarketSnapshot, error)
}

// RiskDayState is the risk gate's intra-day state, persisted so the daily
// counters survive a restart within the same trading day.
type RiskDayState struct {
	Date             string // YYYY-MM-DD
	StartingBalance  float64
	RealizedLoss     float64
	TradeCount       int
	LastTradeAt      time.Time
	LifetimeStart    float64
	HighWaterBalance float64
	Halted           bool // lifetime drawdown latch
}

// RiskStateCache persists the risk gate's day state.
type RiskStateCache interface {
	Save(ctx context.Context, state RiskDayState) error
	Load(ctx context.Context) (RiskDayState, error)
}

// LockManager provides distributed mutual exclusion. The trading loop holds
// an account-scoped lock so two engine instances never manage the same
// account concurrently.
type LockManager interface {
	// Acquire returns an unlock func, or ErrLockHeld when another party
	// holds the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// PositionCache persists open-position tracking metadata so monitoring can
// resume after a restart without losing entry time or zone context.
type PositionCache interface {
	Save(ctx context.Context, state PositionState) error
	Load(ctx context.Context, ticket int64) (PositionState, error)
	List(ctx context.Context, symbol string) ([]PositionState, error)
	Delete(ctx context.Context, ticket int64) error
}

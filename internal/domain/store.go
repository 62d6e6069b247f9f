package domain

import (
	"context"
	"time"
)

// TradeStore persists trade history. Writes are fire-and-forget from the
// trading loop's perspective: a failed write never blocks trading.
type TradeStore interface {
	RecordOpen(ctx context.Context, rec TradeRecord) error
	RecordClose(ctx context.Context, ticket int64, exitPrice, profit, pips float64, reason CloseReason) error

	// LastTradeTime returns the entry time of the most recent trade, or
	// ErrNotFound when no trades exist.
	LastTradeTime(ctx context.Context) (time.Time, error)

	// TodayStats aggregates today's closed trades for risk-state bootstrap.
	TodayStats(ctx context.Context, day string) (DayStats, error)
}

// ZoneStore persists execution-zone observations.
type ZoneStore interface {
	Insert(ctx context.Context, rec ZoneRecord) error
}

// DepthStore persists order-book depth snapshots and answers the historical
// resting-volume query used by the depth scoring component.
type DepthStore interface {
	InsertBatch(ctx context.Context, snaps []DepthSnapshot) error

	// AvgVolumeAtLevel returns the average total resting volume recorded
	// within tolerance of level over the trailing lookback window.
	AvgVolumeAtLevel(ctx context.Context, symbol string, level, tolerance float64, lookbackDays int) (float64, error)

	// ListBefore returns snapshots older than the cutoff, for archival.
	ListBefore(ctx context.Context, before time.Time) ([]DepthSnapshot, error)

	// DeleteBefore removes snapshots older than the cutoff and returns the
	// number of rows removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// DayStatsStore persists per-day aggregates, flushed at day rollover.
type DayStatsStore interface {
	Upsert(ctx context.Context, stats DayStats) error
	Get(ctx context.Context, day string) (DayStats, error)
}

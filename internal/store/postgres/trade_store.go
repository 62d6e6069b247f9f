package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/selimyuksel/iofae/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

var _ domain.TradeStore = (*TradeStore)(nil)

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// RecordOpen inserts a freshly opened trade. Re-inserting the same ticket is
// a no-op so a crash between open and persist can be retried safely.
func (s *TradeStore) RecordOpen(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trade_history (
			ticket, symbol, direction, lot_size, entry_price, stop_loss,
			entry_time, score, zone_type, open
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
		ON CONFLICT (ticket) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.Ticket, rec.Symbol, string(rec.Direction), rec.LotSize,
		rec.EntryPrice, rec.StopLoss, rec.EntryTime, rec.Score, string(rec.ZoneType),
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade open %d: %w", rec.Ticket, err)
	}
	return nil
}

// RecordClose fills in the exit side of an open trade.
func (s *TradeStore) RecordClose(ctx context.Context, ticket int64, exitPrice, profit, pips float64, reason domain.CloseReason) error {
	const query = `
		UPDATE trade_history
		SET exit_price = $2, exit_time = NOW(), profit = $3, pips = $4,
		    exit_reason = $5, open = FALSE
		WHERE ticket = $1`

	tag, err := s.pool.Exec(ctx, query, ticket, exitPrice, profit, pips, string(reason))
	if err != nil {
		return fmt.Errorf("postgres: record trade close %d: %w", ticket, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: record trade close %d: %w", ticket, domain.ErrNotFound)
	}
	return nil
}

// LastTradeTime returns the entry time of the most recent trade.
func (s *TradeStore) LastTradeTime(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT MAX(entry_time) FROM trade_history").Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: last trade time: %w", err)
	}
	if ts == nil {
		return time.Time{}, domain.ErrNotFound
	}
	return *ts, nil
}

// TodayStats aggregates the given day's trades for risk-state bootstrap.
// Open trades count toward the total but not toward win/loss or profit.
func (s *TradeStore) TodayStats(ctx context.Context, day string) (domain.DayStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT open AND profit > 0),
			COUNT(*) FILTER (WHERE NOT open AND profit < 0),
			COALESCE(SUM(profit) FILTER (WHERE NOT open), 0),
			COALESCE(SUM(pips) FILTER (WHERE NOT open), 0)
		FROM trade_history
		WHERE entry_time::date = $1::date`

	stats := domain.DayStats{Date: day}
	err := s.pool.QueryRow(ctx, query, day).Scan(
		&stats.TotalTrades, &stats.WinningTrades, &stats.LosingTrades,
		&stats.TotalProfit, &stats.TotalPips,
	)
	if err != nil {
		return domain.DayStats{}, fmt.Errorf("postgres: today stats for %s: %w", day, err)
	}
	return stats, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/selimyuksel/iofae/internal/domain"
)

// DayStatsStore implements domain.DayStatsStore using PostgreSQL.
type DayStatsStore struct {
	pool *pgxpool.Pool
}

var _ domain.DayStatsStore = (*DayStatsStore)(nil)

// NewDayStatsStore creates a new DayStatsStore backed by the given pool.
func NewDayStatsStore(pool *pgxpool.Pool) *DayStatsStore {
	return &DayStatsStore{pool: pool}
}

// Upsert writes the day's aggregate, replacing any earlier flush for the
// same date.
func (s *DayStatsStore) Upsert(ctx context.Context, stats domain.DayStats) error {
	const query = `
		INSERT INTO daily_stats (
			date, starting_balance, ending_balance, total_trades,
			winning_trades, losing_trades, total_profit, total_pips,
			max_drawdown_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (date) DO UPDATE SET
			starting_balance = EXCLUDED.starting_balance,
			ending_balance   = EXCLUDED.ending_balance,
			total_trades     = EXCLUDED.total_trades,
			winning_trades   = EXCLUDED.winning_trades,
			losing_trades    = EXCLUDED.losing_trades,
			total_profit     = EXCLUDED.total_profit,
			total_pips       = EXCLUDED.total_pips,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct`

	_, err := s.pool.Exec(ctx, query,
		stats.Date, stats.StartingBalance, stats.EndingBalance, stats.TotalTrades,
		stats.WinningTrades, stats.LosingTrades, stats.TotalProfit, stats.TotalPips,
		stats.MaxDrawdownPct,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert daily stats %s: %w", stats.Date, err)
	}
	return nil
}

// Get returns the aggregate for one day, or domain.ErrNotFound.
func (s *DayStatsStore) Get(ctx context.Context, day string) (domain.DayStats, error) {
	const query = `
		SELECT date, starting_balance, ending_balance, total_trades,
		       winning_trades, losing_trades, total_profit, total_pips,
		       max_drawdown_pct
		FROM daily_stats WHERE date = $1`

	var stats domain.DayStats
	err := s.pool.QueryRow(ctx, query, day).Scan(
		&stats.Date, &stats.StartingBalance, &stats.EndingBalance, &stats.TotalTrades,
		&stats.WinningTrades, &stats.LosingTrades, &stats.TotalProfit, &stats.TotalPips,
		&stats.MaxDrawdownPct,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DayStats{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DayStats{}, fmt.Errorf("postgres: get daily stats %s: %w", day, err)
	}
	return stats, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/selimyuksel/iofae/internal/domain"
)

// ZoneStore implements domain.ZoneStore using PostgreSQL.
type ZoneStore struct {
	pool *pgxpool.Pool
}

var _ domain.ZoneStore = (*ZoneStore)(nil)

// NewZoneStore creates a new ZoneStore backed by the given connection pool.
func NewZoneStore(pool *pgxpool.Pool) *ZoneStore {
	return &ZoneStore{pool: pool}
}

// Insert persists one execution-zone observation with its full score
// breakdown.
func (s *ZoneStore) Insert(ctx context.Context, rec domain.ZoneRecord) error {
	const query = `
		INSERT INTO execution_zones (
			symbol, timestamp, price_level, score,
			vwap_score, round_score, fib_score, dom_score, delta_score,
			zone_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		rec.Symbol, rec.Timestamp, rec.PriceLevel, rec.Score,
		rec.Breakdown.VWAP, rec.Breakdown.RoundNumber, rec.Breakdown.Fibonacci,
		rec.Breakdown.DOMDepth, rec.Breakdown.DeltaImbalance,
		string(rec.ZoneType),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution zone: %w", err)
	}
	return nil
}

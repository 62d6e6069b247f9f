package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/selimyuksel/iofae/internal/domain"
)

// DepthStore implements domain.DepthStore using PostgreSQL.
type DepthStore struct {
	pool *pgxpool.Pool
}

var _ domain.DepthStore = (*DepthStore)(nil)

// NewDepthStore creates a new DepthStore backed by the given connection pool.
func NewDepthStore(pool *pgxpool.Pool) *DepthStore {
	return &DepthStore{pool: pool}
}

// InsertBatch inserts one poll's worth of book levels using pgx Batch.
func (s *DepthStore) InsertBatch(ctx context.Context, snaps []domain.DepthSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO depth_snapshots (
			symbol, timestamp, price_level, bid_volume, ask_volume, level_index
		) VALUES ($1, $2, $3, $4, $5, $6)`

	for _, d := range snaps {
		batch.Queue(query,
			d.Symbol, d.Timestamp, d.PriceLevel, d.BidVolume, d.AskVolume, d.LevelIndex,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert depth batch item %d: %w", i, err)
		}
	}
	return nil
}

// AvgVolumeAtLevel returns the average total resting volume recorded within
// tolerance of level over the trailing lookback window. No history at the
// level is zero evidence, not an error.
func (s *DepthStore) AvgVolumeAtLevel(ctx context.Context, symbol string, level, tolerance float64, lookbackDays int) (float64, error) {
	const query = `
		SELECT AVG(bid_volume + ask_volume)
		FROM depth_snapshots
		WHERE symbol = $1
		  AND price_level BETWEEN $2 - $3 AND $2 + $3
		  AND timestamp >= NOW() - make_interval(days => $4)`

	var avg *float64
	err := s.pool.QueryRow(ctx, query, symbol, level, tolerance, lookbackDays).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("postgres: avg volume at %.5f: %w", level, err)
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// ListBefore returns snapshots older than the cutoff, oldest first, for
// archival.
func (s *DepthStore) ListBefore(ctx context.Context, before time.Time) ([]domain.DepthSnapshot, error) {
	const query = `
		SELECT symbol, timestamp, price_level, bid_volume, ask_volume, level_index
		FROM depth_snapshots
		WHERE timestamp < $1
		ORDER BY timestamp ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list depth before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var snaps []domain.DepthSnapshot
	for rows.Next() {
		var d domain.DepthSnapshot
		if err := rows.Scan(
			&d.Symbol, &d.Timestamp, &d.PriceLevel,
			&d.BidVolume, &d.AskVolume, &d.LevelIndex,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan depth snapshot: %w", err)
		}
		snaps = append(snaps, d)
	}
	return snaps, rows.Err()
}

// DeleteBefore removes snapshots older than the cutoff and returns the number
// of rows removed.
func (s *DepthStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM depth_snapshots WHERE timestamp < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete depth before: %w", err)
	}
	return tag.RowsAffected(), nil
}

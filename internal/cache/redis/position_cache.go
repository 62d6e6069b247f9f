package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/selimyuksel/iofae/internal/domain"
)

// PositionCache implements domain.PositionCache. Each position's tracking
// state lives at "position:{ticket}", with a per-symbol set of tickets for
// listing after a restart.
type PositionCache struct {
	rdb *redis.Client
}

// NewPositionCache creates a PositionCache backed by the given Client.
func NewPositionCache(c *Client) *PositionCache {
	return &PositionCache{rdb: c.Underlying()}
}

func positionKey(ticket int64) string {
	return "position:" + strconv.FormatInt(ticket, 10)
}

func positionSetKey(symbol string) string {
	return "positions:" + symbol
}

// Save persists one position's tracking state.
func (pc *PositionCache) Save(ctx context.Context, state domain.PositionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: marshal position %d: %w", state.Ticket, err)
	}

	pipe := pc.rdb.TxPipeline()
	pipe.Set(ctx, positionKey(state.Ticket), data, 0)
	pipe.SAdd(ctx, positionSetKey(state.Symbol), state.Ticket)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: save position %d: %w", state.Ticket, err)
	}
	return nil
}

// Load retrieves one position's tracking state.
func (pc *PositionCache) Load(ctx context.Context, ticket int64) (domain.PositionState, error) {
	data, err := pc.rdb.Get(ctx, positionKey(ticket)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PositionState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PositionState{}, fmt.Errorf("redis: load position %d: %w", ticket, err)
	}

	var state domain.PositionState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.PositionState{}, fmt.Errorf("redis: unmarshal position %d: %w", ticket, err)
	}
	return state, nil
}

// List returns the tracked positions for a symbol. Tickets whose state key
// has vanished are dropped from the set as a side effect.
func (pc *PositionCache) List(ctx context.Context, symbol string) ([]domain.PositionState, error) {
	tickets, err := pc.rdb.SMembers(ctx, positionSetKey(symbol)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list positions %s: %w", symbol, err)
	}

	var states []domain.PositionState
	for _, t := range tickets {
		ticket, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			continue
		}
		state, err := pc.Load(ctx, ticket)
		if errors.Is(err, domain.ErrNotFound) {
			_ = pc.rdb.SRem(ctx, positionSetKey(symbol), t).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// Delete removes a position's tracking state after a confirmed close.
func (pc *PositionCache) Delete(ctx context.Context, ticket int64) error {
	state, err := pc.Load(ctx, ticket)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := pc.rdb.TxPipeline()
	pipe.Del(ctx, positionKey(ticket))
	pipe.SRem(ctx, positionSetKey(state.Symbol), ticket)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete position %d: %w", ticket, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PositionCache = (*PositionCache)(nil)

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/selimyuksel/iofae/internal/domain"
)

// riskStateKey is a single well-known key; the engine manages one account.
const riskStateKey = "risk:day_state"

// RiskStateCache implements domain.RiskStateCache as one JSON value. The key
// never expires: the gate itself decides whether a loaded state is stale.
type RiskStateCache struct {
	rdb *redis.Client
}

// NewRiskStateCache creates a RiskStateCache backed by the given Client.
func NewRiskStateCache(c *Client) *RiskStateCache {
	return &RiskStateCache{rdb: c.Underlying()}
}

// Save persists the day state.
func (rc *RiskStateCache) Save(ctx context.Context, state domain.RiskDayState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: marshal risk state: %w", err)
	}
	if err := rc.rdb.Set(ctx, riskStateKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save risk state: %w", err)
	}
	return nil
}

// Load retrieves the persisted day state. Returns domain.ErrNotFound on a
// first run.
func (rc *RiskStateCache) Load(ctx context.Context) (domain.RiskDayState, error) {
	data, err := rc.rdb.Get(ctx, riskStateKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RiskDayState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RiskDayState{}, fmt.Errorf("redis: load risk state: %w", err)
	}

	var state domain.RiskDayState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.RiskDayState{}, fmt.Errorf("redis: unmarshal risk state: %w", err)
	}
	return state, nil
}

// Compile-time interface check.
var _ domain.RiskStateCache = (*RiskStateCache)(nil)

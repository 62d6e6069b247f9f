package zone

import (
	"context"
	"sort"

	"github.com/selimyuksel/iofae/internal/domain"
)

// keepFloor drops zones too weak to be worth reporting from a scan.
const keepFloor = 50.0

// Scan evaluates every pip level in a symmetric window around the current bid
// and returns the zones scoring at least keepFloor, best first.
func (s *Scorer) Scan(ctx context.Context, snap domain.MarketSnapshot, rangePips int) []domain.ExecutionZone {
	zones := make([]domain.ExecutionZone, 0, 2*rangePips+1)
	for offset := -rangePips; offset <= rangePips; offset++ {
		level := snap.Bid + float64(offset)*s.cfg.PipSize
		z := s.Score(ctx, level, snap)
		if z.Score >= keepFloor {
			zones = append(zones, z)
		}
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Score > zones[j].Score })
	return zones
}

// BestZone returns the highest-scoring zone in the window when it clears
// minScore, or nil when nothing qualifies.
func (s *Scorer) BestZone(ctx context.Context, snap domain.MarketSnapshot, rangePips int, minScore float64) *domain.ExecutionZone {
	zones := s.Scan(ctx, snap, rangePips)
	if len(zones) == 0 || zones[0].Score < minScore {
		return nil
	}
	best := zones[0]
	return &best
}

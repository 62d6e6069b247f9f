package zone

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selimyuksel/iofae/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		PipSize:            0.0001,
		DOMVolumeThreshold: 1500,
		DeltaThreshold:     8000,
		FibProximityPips:   5,
		DepthLookbackDays:  20,
		EntryOffsetPips:    7,
		StopLossPips:       10,
	}
}

type fakeDepth struct {
	volume float64
	err    error
}

func (f fakeDepth) AvgVolumeAtLevel(_ context.Context, _ string, _, _ float64, _ int) (float64, error) {
	return f.volume, f.err
}

func snapshotAt(bid, vwap float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol: "EURUSD",
		Bid:    bid,
		Ask:    bid + 0.0001,
		Spread: 0.0001,
		VWAP:   vwap,
	}
}

func TestScoreComponentBounds(t *testing.T) {
	s := NewScorer(testConfig(), fakeDepth{volume: 2200}, testLogger())

	snap := snapshotAt(1.0580, 1.0600)
	snap.BidAskDelta = 12000
	snap.SwingHigh = 1.0700
	snap.SwingLow = 1.0500
	snap.Fibs = []domain.FibLevel{
		{Ratio: 0.618, Price: 1.05764},
		{Ratio: 0.5, Price: 1.0600},
	}

	for offset := -40; offset <= 40; offset++ {
		level := snap.Bid + float64(offset)*0.0001
		z := s.Score(context.Background(), level, snap)

		assert.GreaterOrEqual(t, z.Breakdown.VWAP, 0.0)
		assert.LessOrEqual(t, z.Breakdown.VWAP, VWAPMax)
		assert.GreaterOrEqual(t, z.Breakdown.RoundNumber, 0.0)
		assert.LessOrEqual(t, z.Breakdown.RoundNumber, RoundMax)
		assert.GreaterOrEqual(t, z.Breakdown.Fibonacci, 0.0)
		assert.LessOrEqual(t, z.Breakdown.Fibonacci, FibMax)
		assert.GreaterOrEqual(t, z.Breakdown.DOMDepth, 0.0)
		assert.LessOrEqual(t, z.Breakdown.DOMDepth, DepthMax)
		assert.GreaterOrEqual(t, z.Breakdown.DeltaImbalance, 0.0)
		assert.LessOrEqual(t, z.Breakdown.DeltaImbalance, DeltaMax)
		assert.LessOrEqual(t, z.Score, 100.0)
	}
}

func TestVWAPScoreMonotonic(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	vwap := 1.0600
	prev := -1.0
	for pips := 0; pips <= 60; pips++ {
		level := vwap + float64(pips)*0.0001
		score := s.vwapScore(level, vwap)
		assert.GreaterOrEqual(t, score, prev, "score must not decrease with distance (pips=%d)", pips)
		prev = score
	}
}

func TestVWAPScoreZeroVWAP(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())
	assert.Zero(t, s.vwapScore(1.0600, 0))
}

func TestVWAPScoreSaturates(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())
	// 0.4% away: beyond the critical band.
	assert.Equal(t, VWAPMax, s.vwapScore(1.0600*1.004, 1.0600))
}

func TestVWAPScoreTwentyPipsAway(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	// 20 pips from a 1.0600 VWAP is a distance ratio of ~0.00189, inside the
	// second band: meaningfully scored but well short of the saturated max.
	score := s.vwapScore(1.0580, 1.0600)
	assert.Greater(t, score, 5.0)
	assert.Less(t, score, 15.0)
	assert.Less(t, score, VWAPMax)
}

func TestRoundNumberScores(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	cases := []struct {
		level float64
		score float64
		kind  domain.ZoneType
	}{
		{1.0800, RoundMax, domain.ZoneInstitutional},
		{1.0900, RoundMax, domain.ZoneInstitutional},
		{1.0850, RoundMax * 0.72, domain.ZoneRoundHalf},
		{1.0825, RoundMax * 0.40, domain.ZoneRoundQuarter},
		{1.0875, RoundMax * 0.40, domain.ZoneRoundQuarter},
		{1.0810, RoundMax * 0.20, domain.ZoneRoundTenPip},
	}
	for _, tc := range cases {
		score, kind := s.roundNumberScore(tc.level)
		assert.InDelta(t, tc.score, score, 1e-9, "level %v", tc.level)
		assert.Equal(t, tc.kind, kind, "level %v", tc.level)
	}
}

func TestRoundNumberProximityBonus(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	// 3 pips from 1.0850: decaying bonus, under 30% of the max.
	score, kind := s.roundNumberScore(1.08470 + 0.00003)
	assert.Equal(t, domain.ZoneRoundNear, kind)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, RoundMax*0.3)
}

func TestFibScorePicksBestLevel(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	fibs := []domain.FibLevel{
		{Ratio: 0.618, Price: 1.0620},
		{Ratio: 0.382, Price: 1.0621},
	}

	// Exactly on the 0.618 level: full weight, zero distance decay.
	score, ratio := s.fibScore(1.0620, fibs)
	assert.InDelta(t, FibMax, score, 1e-9)
	assert.Equal(t, 0.618, ratio)
}

func TestFibScoreMissingLevels(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	score, ratio := s.fibScore(1.0620, nil)
	assert.Zero(t, score)
	assert.Zero(t, ratio)

	// Outside the 5-pip proximity window.
	score, _ = s.fibScore(1.0700, []domain.FibLevel{{Ratio: 0.5, Price: 1.0620}})
	assert.Zero(t, score)
}

func TestDepthScoreShape(t *testing.T) {
	ctx := context.Background()

	above := NewScorer(testConfig(), fakeDepth{volume: 1800}, testLogger())
	assert.Equal(t, DepthMax, above.depthScore(ctx, "EURUSD", 1.0600))

	atKnee := NewScorer(testConfig(), fakeDepth{volume: 900}, testLogger())
	assert.InDelta(t, DepthMax*0.6, atKnee.depthScore(ctx, "EURUSD", 1.0600), 1e-9)

	below := NewScorer(testConfig(), fakeDepth{volume: 450}, testLogger())
	assert.InDelta(t, DepthMax*0.3, below.depthScore(ctx, "EURUSD", 1.0600), 1e-9)

	empty := NewScorer(testConfig(), fakeDepth{volume: 0}, testLogger())
	assert.Zero(t, empty.depthScore(ctx, "EURUSD", 1.0600))
}

func TestDepthScoreQueryFailureIsZero(t *testing.T) {
	s := NewScorer(testConfig(), fakeDepth{err: errors.New("db down")}, testLogger())
	assert.Zero(t, s.depthScore(context.Background(), "EURUSD", 1.0600))
}

func TestDeltaScoreShape(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	assert.Equal(t, DeltaMax, s.deltaScore(9000))
	assert.Equal(t, DeltaMax, s.deltaScore(-9000))
	assert.InDelta(t, DeltaMax*0.5, s.deltaScore(4000), 1e-9)
	assert.Zero(t, s.deltaScore(0))
}

func TestDirectionTriggerAndStop(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())
	snap := snapshotAt(1.0580, 0)

	long := s.Score(context.Background(), 1.0600, snap)
	require.Equal(t, domain.DirectionLong, long.Direction)
	assert.InDelta(t, 1.0600-7*0.0001, long.TriggerPrice, 1e-9)
	assert.InDelta(t, long.TriggerPrice-10*0.0001, long.StopLoss, 1e-9)

	short := s.Score(context.Background(), 1.0560, snap)
	require.Equal(t, domain.DirectionShort, short.Direction)
	assert.InDelta(t, 1.0560+7*0.0001, short.TriggerPrice, 1e-9)
	assert.InDelta(t, short.TriggerPrice+10*0.0001, short.StopLoss, 1e-9)
}

func TestClassifyMajorRound(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	// Level ending in 00 with every other input absent: the round component
	// dominates and labels the zone institutional.
	snap := snapshotAt(1.0580, 0)
	z := s.Score(context.Background(), 1.0600, snap)

	assert.InDelta(t, RoundMax, z.Breakdown.RoundNumber, 1e-9)
	assert.Equal(t, domain.ZoneInstitutional, z.Type)
}

func TestClassifyFibLabel(t *testing.T) {
	s := NewScorer(testConfig(), nil, testLogger())

	snap := snapshotAt(1.0580, 0)
	snap.Fibs = []domain.FibLevel{{Ratio: 0.618, Price: 1.05613}}
	z := s.Score(context.Background(), 1.05613, snap)

	assert.Equal(t, domain.ZoneType("FIB_0.618"), z.Type)
}

func TestClassifyConfluence(t *testing.T) {
	b := domain.ScoreBreakdown{VWAP: 20, RoundNumber: 18, Fibonacci: 16}
	// VWAP dominant but short of its 80% dominance bar; three components
	// above the confluence floor.
	assert.Equal(t, domain.ZoneConfluence, classify(b, domain.ZoneRoundHalf, 0))
}

func TestClassifyMixed(t *testing.T) {
	b := domain.ScoreBreakdown{VWAP: 10, RoundNumber: 5}
	assert.Equal(t, domain.ZoneMixed, classify(b, "", 0))
}

package risk

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selimyuksel/iofae/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func testGate(clock *fakeClock) *Gate {
	cfg := Config{
		RiskPerTrade:     0.01,
		MaxDailyLoss:     0.05,
		MaxTotalDrawdown: 0.10,
		MaxTradesPerDay:  3,
		MinTradeInterval: 3 * time.Hour,
		MinLot:           0.01,
		MaxLot:           100,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGate(cfg, clock, logger)
}

func midday() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func TestCanTradeFreshDay(t *testing.T) {
	g := testGate(midday())
	g.ResetDaily(10000)

	ok, reason := g.CanTrade()
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestDailyLossLimitBlocksUntilReset(t *testing.T) {
	clock := midday()
	g := testGate(clock)
	g.ResetDaily(10000)

	// 5% of 10000 is 500; book 510 of realized losses.
	g.RecordResult(-300)
	g.RecordResult(-210)

	ok, reason := g.CanTrade()
	require.False(t, ok)
	assert.Contains(t, reason, "daily loss limit")

	// Next day: the loss counter clears.
	clock.advance(24 * time.Hour)
	g.ResetDaily(9490)
	ok, _ = g.CanTrade()
	assert.True(t, ok)
}

func TestLifetimeDrawdownLatchSurvivesReset(t *testing.T) {
	clock := midday()
	g := testGate(clock)
	g.ResetDaily(10000)

	g.UpdateBalance(8900) // 11% under the lifetime start

	ok, reason := g.CanTrade()
	require.False(t, ok)
	assert.Contains(t, reason, "halted")

	// The latch is permanent: daily reset and balance recovery do not clear it.
	clock.advance(24 * time.Hour)
	g.ResetDaily(8900)
	g.UpdateBalance(9800)
	ok, _ = g.CanTrade()
	assert.False(t, ok)
}

func TestTradeCountCap(t *testing.T) {
	clock := midday()
	g := testGate(clock)
	g.ResetDaily(10000)

	for i := 0; i < 3; i++ {
		g.RecordTrade()
		clock.advance(4 * time.Hour)
	}

	ok, reason := g.CanTrade()
	require.False(t, ok)
	assert.Contains(t, reason, "trade cap")
}

func TestMinTradeInterval(t *testing.T) {
	clock := midday()
	g := testGate(clock)
	g.ResetDaily(10000)
	g.RecordTrade()

	// 50 minutes later: still inside the 3h interval.
	clock.advance(50 * time.Minute)
	ok, reason := g.CanTrade()
	require.False(t, ok)
	assert.Contains(t, reason, "interval")

	// 2h10m more: past the interval.
	clock.advance(130 * time.Minute)
	ok, _ = g.CanTrade()
	assert.True(t, ok)
}

func TestLotSize(t *testing.T) {
	g := testGate(midday())

	// 1% of 10000 = 100 at risk; 10 pips × $10/pip/lot = $100/lot → 1.00 lot.
	assert.InDelta(t, 1.00, g.LotSize(10000, 10), 1e-9)

	// 1% of 550 = 5.50 at risk over 10 pips → 0.06 lots (rounded).
	assert.InDelta(t, 0.06, g.LotSize(550, 10), 1e-9)

	// Tiny balances clamp to the minimum lot.
	assert.InDelta(t, 0.01, g.LotSize(50, 10), 1e-9)

	// Absurd balances clamp to the maximum lot.
	assert.InDelta(t, 100.0, g.LotSize(1e9, 10), 1e-9)

	// Degenerate stop distance falls back to the minimum.
	assert.InDelta(t, 0.01, g.LotSize(10000, 0), 1e-9)
}

func TestBootstrapSameDayRestoresCounters(t *testing.T) {
	clock := midday()
	g := testGate(clock)

	g.Bootstrap(domain.RiskDayState{
		Date:            "2026-03-10",
		StartingBalance: 10000,
		RealizedLoss:    120,
		TradeCount:      2,
		LastTradeAt:     clock.now.Add(-4 * time.Hour),
		LifetimeStart:   10000,
	}, 9880)

	st := g.DayState()
	assert.Equal(t, 2, st.TradeCount)
	assert.InDelta(t, 120.0, st.RealizedLoss, 1e-9)

	ok, _ := g.CanTrade()
	assert.True(t, ok)
}

func TestBootstrapStaleDayRollsOver(t *testing.T) {
	clock := midday()
	g := testGate(clock)

	g.Bootstrap(domain.RiskDayState{
		Date:            "2026-03-09",
		StartingBalance: 10000,
		RealizedLoss:    480,
		TradeCount:      3,
		LifetimeStart:   10000,
		Halted:          false,
	}, 9520)

	st := g.DayState()
	assert.Equal(t, "2026-03-10", st.Date)
	assert.Zero(t, st.TradeCount)
	assert.Zero(t, st.RealizedLoss)
	assert.InDelta(t, 10000.0, st.LifetimeStart, 1e-9)
}

func TestChallengeProgress(t *testing.T) {
	g := testGate(midday())
	g.ResetDaily(10000)

	assert.InDelta(t, 0.25, g.ChallengeProgress(12500), 1e-9)
	assert.InDelta(t, -0.05, g.ChallengeProgress(9500), 1e-9)
}

package position

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selimyuksel/iofae/internal/domain"
)

type fakeBroker struct {
	modifyCalls []float64
	modifyErr   error
	closeCalls  []int64
	closeErr    error
}

func (b *fakeBroker) OpenPosition(context.Context, domain.OpenRequest) (int64, error) {
	return 0, errors.New("not implemented")
}

func (b *fakeBroker) ClosePosition(_ context.Context, ticket int64) error {
	if b.closeErr != nil {
		return b.closeErr
	}
	b.closeCalls = append(b.closeCalls, ticket)
	return nil
}

func (b *fakeBroker) ModifyStopLoss(_ context.Context, _ int64, stop float64) error {
	if b.modifyErr != nil {
		return b.modifyErr
	}
	b.modifyCalls = append(b.modifyCalls, stop)
	return nil
}

func (b *fakeBroker) OpenPositions(context.Context, string) ([]domain.Position, error) {
	return nil, nil
}

var monitorStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testMonitor(broker *fakeBroker, now time.Time) *Monitor {
	cfg := Config{
		PipSize:           0.0001,
		MaxHoldTime:       15 * time.Minute,
		VolumeDropRatio:   0.70,
		SpreadWidenRatio:  1.50,
		StallRangePips:    2.0,
		MinProfitPips:     10,
		MinSamples:        20,
		TrailActivatePips: 15,
		TrailBufferPips:   5,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMonitor(cfg, broker, domain.ClockFunc(func() time.Time { return now }), logger)
}

func longPosition(entry, stop float64, openedAt time.Time) domain.Position {
	return domain.Position{
		Ticket:     42,
		Symbol:     "EURUSD",
		Direction:  domain.DirectionLong,
		Volume:     0.10,
		EntryPrice: entry,
		StopLoss:   stop,
		OpenedAt:   openedAt,
	}
}

func snapAt(bid float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol: "EURUSD",
		Bid:    bid,
		Ask:    bid + 0.0001,
		Spread: 0.0001,
		LastBar: domain.Bar{
			Low:        bid - 0.0002,
			High:       bid + 0.0003,
			TickVolume: 100,
		},
	}
}

// warmHistory fills the buffers with healthy flow: steady volume, tight
// spread, prices moving enough that the stall check stays quiet.
func warmHistory(m *Monitor, around float64, n int) {
	for i := 0; i < n; i++ {
		s := snapAt(around + float64(i%8)*0.0001)
		m.Observe(s)
	}
}

func TestStopLossCrossClosesAtStopPrice(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	pos := longPosition(1.0500, 1.0490, monitorStart.Add(-5*time.Minute))

	snap := snapAt(1.0493)
	snap.LastBar.Low = 1.0489 // traded through the stop intrabar

	v := m.EvaluateTick(context.Background(), pos, snap)
	require.True(t, v.Close)
	assert.Equal(t, domain.CloseStopLoss, v.Reason)
	assert.InDelta(t, 1.0490, v.ExitPrice, 1e-9)
}

func TestStopLossWinsOverTimeLimit(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	// Held past the limit AND the stop was hit: the stop reason wins.
	pos := longPosition(1.0500, 1.0490, monitorStart.Add(-20*time.Minute))

	snap := snapAt(1.0493)
	snap.LastBar.Low = 1.0489

	v := m.EvaluateTick(context.Background(), pos, snap)
	require.True(t, v.Close)
	assert.Equal(t, domain.CloseStopLoss, v.Reason)
}

func TestShortStopCrossUsesBarHigh(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	pos := domain.Position{
		Ticket:     7,
		Direction:  domain.DirectionShort,
		EntryPrice: 1.0500,
		StopLoss:   1.0510,
		OpenedAt:   monitorStart.Add(-2 * time.Minute),
	}

	snap := snapAt(1.0506)
	snap.LastBar.High = 1.0511

	v := m.EvaluateTick(context.Background(), pos, snap)
	require.True(t, v.Close)
	assert.Equal(t, domain.CloseStopLoss, v.Reason)
	assert.InDelta(t, 1.0510, v.ExitPrice, 1e-9)
}

func TestTimeLimitClosesAtMarket(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	pos := longPosition(1.0500, 1.0490, monitorStart.Add(-16*time.Minute))

	snap := snapAt(1.0504)
	v := m.EvaluateTick(context.Background(), pos, snap)
	require.True(t, v.Close)
	assert.Equal(t, domain.CloseTimeLimit, v.Reason)
	assert.InDelta(t, 1.0504, v.ExitPrice, 1e-9)
}

func TestExhaustionRequiresMinimumProfit(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	warmHistory(m, 1.0500, 50)

	// Collapse the volume: would be exhaustion, but only 4 pips in profit.
	for i := 0; i < 5; i++ {
		s := snapAt(1.0504)
		s.LastBar.TickVolume = 10
		m.Observe(s)
	}

	pos := longPosition(1.0500, 1.0480, monitorStart.Add(-5*time.Minute))
	s := snapAt(1.0504)
	s.LastBar.TickVolume = 10

	v := m.EvaluateTick(context.Background(), pos, s)
	assert.False(t, v.Close)
}

func TestExhaustionRequiresHistory(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	// Only 5 observations: far short of the 20-sample minimum.
	for i := 0; i < 5; i++ {
		s := snapAt(1.0512)
		s.LastBar.TickVolume = 1
		m.Observe(s)
	}

	pos := longPosition(1.0500, 1.0480, monitorStart.Add(-5*time.Minute))
	v := m.EvaluateTick(context.Background(), pos, snapAt(1.0512))
	assert.False(t, v.Close)
}

func TestExhaustionVolumeDrop(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	warmHistory(m, 1.0500, 50)

	// Recent volume collapses below 70% of the trailing mean.
	for i := 0; i < 5; i++ {
		s := snapAt(1.0510 + float64(i)*0.0001)
		s.LastBar.TickVolume = 10
		m.Observe(s)
	}

	pos := longPosition(1.0500, 1.0480, monitorStart.Add(-5*time.Minute))
	v := m.EvaluateTick(context.Background(), pos, snapAt(1.0514))
	require.True(t, v.Close)
	assert.Equal(t, domain.CloseExhaustion, v.Reason)
	assert.Equal(t, domain.ExhaustionVolume, v.Kind)
}

func TestExhaustionSpreadWiden(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	warmHistory(m, 1.0500, 55)

	pos := longPosition(1.0500, 1.0480, monitorStart.Add(-5*time.Minute))
	s := snapAt(1.0512)
	s.Spread = 0.0004 // 4x the trailing 1-pip mean

	v := m.EvaluateTick(context.Background(), pos, s)
	require.True(t, v.Close)
	assert.Equal(t, domain.CloseExhaustion, v.Reason)
	assert.Equal(t, domain.ExhaustionSpread, v.Kind)
}

func TestExhaustionPriceStall(t *testing.T) {
	m := testMonitor(&fakeBroker{}, monitorStart)
	warmHistory(m, 1.0500, 50)

	// Last 5 prices pinned within half a pip.
	for i := 0; i < 5; i++ {
		m.Observe(snapAt(1.0512))
	}

	pos := longPosition(1.0500, 1.0480, monitorStart.Add(-5*time.Minute))
	v := m.EvaluateTick(context.Background(), pos, snapAt(1.0512))
	require.True(t, v.Close)
	assert.Equal(t, domain.CloseExhaustion, v.Reason)
	assert.Equal(t, domain.ExhaustionStall, v.Kind)
}

func TestTrailingStopMovesToBreakevenOnce(t *testing.T) {
	broker := &fakeBroker{}
	m := testMonitor(broker, monitorStart)

	pos := longPosition(1.0500, 1.0490, monitorStart.Add(-5*time.Minute))
	snap := snapAt(1.0516) // 16 pips in profit

	v := m.EvaluateTick(context.Background(), pos, snap)
	assert.False(t, v.Close)
	require.Len(t, broker.modifyCalls, 1)
	assert.InDelta(t, 1.0505, broker.modifyCalls[0], 1e-9) // breakeven + 5 pip buffer

	// Second tick: already trailed, no further modification.
	m.EvaluateTick(context.Background(), pos, snap)
	assert.Len(t, broker.modifyCalls, 1)
}

func TestTrailingStopRetriesAfterFailure(t *testing.T) {
	broker := &fakeBroker{modifyErr: errors.New("requote")}
	m := testMonitor(broker, monitorStart)

	pos := longPosition(1.0500, 1.0490, monitorStart.Add(-5*time.Minute))
	snap := snapAt(1.0516)

	m.EvaluateTick(context.Background(), pos, snap)
	assert.Empty(t, broker.modifyCalls)

	// Venue recovers; the next tick applies the trail.
	broker.modifyErr = nil
	m.EvaluateTick(context.Background(), pos, snap)
	assert.Len(t, broker.modifyCalls, 1)
}

func TestCloseFailureKeepsPositionTracked(t *testing.T) {
	broker := &fakeBroker{closeErr: errors.New("terminal disconnected")}
	m := testMonitor(broker, monitorStart)
	pos := longPosition(1.0500, 1.0490, monitorStart.Add(-5*time.Minute))

	err := m.Close(context.Background(), pos, domain.CloseTimeLimit)
	require.Error(t, err)

	broker.closeErr = nil
	require.NoError(t, m.Close(context.Background(), pos, domain.CloseTimeLimit))
	assert.Equal(t, []int64{42}, broker.closeCalls)
}

func TestRollingBuffer(t *testing.T) {
	r := NewRolling(3)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Push(4) // evicts 1

	assert.Equal(t, 3, r.Len())
	assert.InDelta(t, 3.0, r.TailMean(3), 1e-9)
	assert.InDelta(t, 3.5, r.TailMean(2), 1e-9)
	assert.InDelta(t, 2.0, r.TailRange(3), 1e-9)
}

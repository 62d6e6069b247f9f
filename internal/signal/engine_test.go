package signal

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
	"github.com/selimyuksel/iofae/internal/zone"
)

type fakeMarket struct {
	bars     []domain.Bar
	barsErr  error
	daily    domain.Bar
	dailyErr error
}

func (f *fakeMarket) Snapshot(context.Context) (domain.MarketSnapshot, error) {
	return domain.MarketSnapshot{}, errors.New("not implemented")
}

func (f *fakeMarket) RecentBars(context.Context, string, int) ([]domain.Bar, error) {
	return f.bars, f.barsErr
}

func (f *fakeMarket) DailyBar(context.Context, string, int) (domain.Bar, error) {
	return f.daily, f.dailyErr
}

func (f *fakeMarket) AccountInfo(context.Context) (domain.AccountInfo, error) {
	return domain.AccountInfo{}, errors.New("not implemented")
}

type fakeZoneStore struct {
	records []domain.ZoneRecord
	err     error
}

func (f *fakeZoneStore) Insert(_ context.Context, rec domain.ZoneRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeDepth struct {
	volume float64
}

func (f fakeDepth) AvgVolumeAtLevel(context.Context, string, float64, float64, int) (float64, error) {
	return f.volume, nil
}

// fallingBars yields a clearly falling secondary instrument (confirms a long).
func fallingBars() []domain.Bar {
	return []domain.Bar{{Close: 104.00}, {Close: 103.98}, {Close: 103.95}}
}

// risingBars yields a rising secondary instrument (conflicts with a long).
func risingBars() []domain.Bar {
	return []domain.Bar{{Close: 103.95}, {Close: 103.98}, {Close: 104.00}}
}

// flatBars yields a secondary instrument with no net movement (confirms).
func flatBars() []domain.Bar {
	return []domain.Bar{{Close: 104.00}, {Close: 104.02}, {Close: 104.00}}
}

type engineFixture struct {
	engine *Engine
	market *fakeMarket
	zones  *fakeZoneStore
}

func newFixture(t *testing.T, now time.Time, depthVolume float64, bars []domain.Bar) *engineFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := domain.ClockFunc(func() time.Time { return now })

	scorer := zone.NewScorer(zone.Config{
		PipSize:            0.0001,
		DOMVolumeThreshold: 1500,
		DeltaThreshold:     8000,
		FibProximityPips:   5,
		DepthLookbackDays:  20,
		EntryOffsetPips:    7,
		StopLossPips:       10,
	}, fakeDepth{volume: depthVolume}, logger)

	sessions, err := NewSessions(SessionConfig{
		LondonOpenHour:  7,
		LondonCloseHour: 16,
		NewYorkOpenHour: 12,
		NewYorkClose:    21,
		Blackouts:       []string{"13:00-14:00"},
	})
	require.NoError(t, err)

	market := &fakeMarket{
		bars:  bars,
		daily: domain.Bar{High: 1.0850, Low: 1.0760},
	}

	hunt := NewStopHunt(StopHuntConfig{
		Enabled:         true,
		WindowStartHour: 8,
		WindowDuration:  30 * time.Minute,
		MinBreakoutPips: 5,
		MaxBreakoutPips: 12,
		Confidence:      92,
		StopOffsetPips:  15,
		PipSize:         0.0001,
	}, market, logger)

	corr := NewCorrelation(CorrelationConfig{
		Enabled:       true,
		Symbol:        "DXY",
		Bars:          10,
		FlatThreshold: 0.001,
	}, market, logger)

	zones := &fakeZoneStore{}
	engine := NewEngine(Config{
		Symbol:          "EURUSD",
		ScanRangePips:   30,
		MinScore:        90,
		ConfirmBonus:    5,
		ConflictPenalty: 15,
	}, scorer, sessions, hunt, corr, zones, clock, logger)

	return &engineFixture{engine: engine, market: market, zones: zones}
}

// strongSnapshot lines every scoring component up behind the 1.0800 level:
// far from VWAP, a major round number, an exact 0.618 retracement, heavy
// historical depth, and a saturated delta.
func strongSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol:      "EURUSD",
		Bid:         1.0793,
		Ask:         1.0794,
		Spread:      0.0001,
		VWAP:        1.0750,
		BidAskDelta: 9000,
		Fibs:        []domain.FibLevel{{Ratio: 0.618, Price: 1.0800}},
	}
}

// weakSnapshot has nothing going for any level near the bid.
func weakSnapshot() domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol: "EURUSD",
		Bid:    1.07433,
		Ask:    1.07443,
		Spread: 0.0001,
	}
}

var tradingHours = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func TestGenerateEmitsOnStrongZone(t *testing.T) {
	f := newFixture(t, tradingHours, 2000, fallingBars())

	sig := f.engine.Generate(context.Background(), strongSnapshot())
	require.NotNil(t, sig)

	assert.NotEmpty(t, sig.ID)
	assert.Equal(t, domain.DirectionLong, sig.Direction)
	assert.Equal(t, domain.ZoneVWAPReversion, sig.Zone.Type)
	assert.InDelta(t, 1.0800, sig.Zone.Price, 1e-9)
	assert.InDelta(t, 1.0800-7*0.0001, sig.EntryPrice, 1e-9)
	assert.InDelta(t, sig.EntryPrice-10*0.0001, sig.StopLoss, 1e-9)
	assert.Equal(t, domain.CorrelationConfirmed, sig.Correlation.Status)
	assert.GreaterOrEqual(t, sig.Confidence, 90.0)

	// The winning zone was persisted for post-hoc study.
	require.Len(t, f.zones.records, 1)
	assert.InDelta(t, 1.0800, f.zones.records[0].PriceLevel, 1e-9)
}

func TestGenerateRejectsOutsideSession(t *testing.T) {
	early := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	f := newFixture(t, early, 2000, fallingBars())

	assert.Nil(t, f.engine.Generate(context.Background(), strongSnapshot()))
}

func TestGenerateRejectsDuringBlackout(t *testing.T) {
	newsTime := time.Date(2026, 3, 10, 13, 30, 0, 0, time.UTC)
	f := newFixture(t, newsTime, 2000, fallingBars())

	assert.Nil(t, f.engine.Generate(context.Background(), strongSnapshot()))
}

func TestGenerateRejectsWeakMarket(t *testing.T) {
	f := newFixture(t, tradingHours, 0, fallingBars())

	assert.Nil(t, f.engine.Generate(context.Background(), weakSnapshot()))
	assert.Empty(t, f.zones.records)
}

func TestGenerateRejectsOnCorrelationConflict(t *testing.T) {
	// Zone scores in the mid-90s; the rising secondary drags it below 90.
	f := newFixture(t, tradingHours, 2000, risingBars())
	snap := strongSnapshot()
	snap.BidAskDelta = 4000 // delta component at half strength

	sig := f.engine.Generate(context.Background(), snap)
	assert.Nil(t, sig)
}

func TestGenerateFlatSecondaryAddsBonus(t *testing.T) {
	// Same mid-90s zone as the conflict case, but a flat index confirms it:
	// the bonus lifts confidence instead of leaving the score untouched.
	f := newFixture(t, tradingHours, 2000, flatBars())
	snap := strongSnapshot()
	snap.BidAskDelta = 4000 // delta component at half strength, zone scores 95

	sig := f.engine.Generate(context.Background(), snap)
	require.NotNil(t, sig)
	assert.Equal(t, domain.CorrelationConfirmed, sig.Correlation.Status)
	assert.Equal(t, domain.TrendFlat, sig.Correlation.Trend)
	assert.InDelta(t, 100.0, sig.Confidence, 1e-9)
}

func TestGenerateConfidenceClampedAt100(t *testing.T) {
	// A perfect 100 zone plus the confirmation bonus still reads 100.
	f := newFixture(t, tradingHours, 2000, fallingBars())

	sig := f.engine.Generate(context.Background(), strongSnapshot())
	require.NotNil(t, sig)
	assert.InDelta(t, 100.0, sig.Confidence, 1e-9)
}

func TestGenerateStopHuntShortCircuit(t *testing.T) {
	huntTime := time.Date(2026, 3, 10, 8, 10, 0, 0, time.UTC)
	f := newFixture(t, huntTime, 0, fallingBars())

	// 8 pips above yesterday's 1.0850 high: a sweep, not a breakout.
	snap := weakSnapshot()
	snap.Bid = 1.0858
	snap.Ask = 1.0859

	sig := f.engine.Generate(context.Background(), snap)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ZoneStopHuntHigh, sig.Zone.Type)
	assert.Equal(t, domain.DirectionShort, sig.Direction)
	assert.InDelta(t, 92.0, sig.Confidence, 1e-9)
	assert.InDelta(t, 1.0858, sig.EntryPrice, 1e-9)
	assert.InDelta(t, 1.0858+15*0.0001, sig.StopLoss, 1e-9)
}

func TestGenerateDeepBreakoutIsNotAHunt(t *testing.T) {
	huntTime := time.Date(2026, 3, 10, 8, 10, 0, 0, time.UTC)
	f := newFixture(t, huntTime, 0, fallingBars())

	// 20 pips through the high: genuine range expansion, no counter-trade.
	snap := weakSnapshot()
	snap.Bid = 1.0870
	snap.Ask = 1.0871

	assert.Nil(t, f.engine.Generate(context.Background(), snap))
}

func TestGenerateLowBreakoutSignalsLong(t *testing.T) {
	huntTime := time.Date(2026, 3, 10, 8, 20, 0, 0, time.UTC)
	f := newFixture(t, huntTime, 0, fallingBars())

	snap := weakSnapshot()
	snap.Bid = 1.0754 // 6 pips under yesterday's 1.0760 low
	snap.Ask = 1.0755

	sig := f.engine.Generate(context.Background(), snap)
	require.NotNil(t, sig)
	assert.Equal(t, domain.ZoneStopHuntLow, sig.Zone.Type)
	assert.Equal(t, domain.DirectionLong, sig.Direction)
	assert.InDelta(t, 1.0754-15*0.0001, sig.StopLoss, 1e-9)
}

func TestGenerateZoneStoreFailureDoesNotSuppressSignal(t *testing.T) {
	f := newFixture(t, tradingHours, 2000, fallingBars())
	f.zones.err = errors.New("db down")

	assert.NotNil(t, f.engine.Generate(context.Background(), strongSnapshot()))
}

package signal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/selimyuksel/iofae/internal/domain"
)

func newCorrelation(market *fakeMarket, enabled bool) *Correlation {
	return NewCorrelation(CorrelationConfig{
		Enabled:       enabled,
		Symbol:        "DXY",
		Bars:          10,
		FlatThreshold: 0.001,
	}, market, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCorrelationInverseMapping(t *testing.T) {
	ctx := context.Background()

	// Falling dollar index confirms a long, conflicts with a short.
	c := newCorrelation(&fakeMarket{bars: fallingBars()}, true)
	assert.Equal(t, domain.CorrelationConfirmed, c.Check(ctx, domain.DirectionLong).Status)
	assert.Equal(t, domain.CorrelationConflicting, c.Check(ctx, domain.DirectionShort).Status)

	// Rising index: the reverse.
	c = newCorrelation(&fakeMarket{bars: risingBars()}, true)
	assert.Equal(t, domain.CorrelationConflicting, c.Check(ctx, domain.DirectionLong).Status)
	assert.Equal(t, domain.CorrelationConfirmed, c.Check(ctx, domain.DirectionShort).Status)
}

func TestCorrelationFlatConfirmsEitherDirection(t *testing.T) {
	// Ten bars of churn with zero net movement: the index is going nowhere,
	// so it cannot be leaning against the trade. Both directions confirm.
	bars := make([]domain.Bar, 10)
	for i := range bars {
		bars[i] = domain.Bar{Close: 104.0000}
		if i%2 == 1 {
			bars[i].Close = 104.0004
		}
	}
	bars[len(bars)-1].Close = 104.0000
	c := newCorrelation(&fakeMarket{bars: bars}, true)

	result := c.Check(context.Background(), domain.DirectionLong)
	assert.Equal(t, domain.CorrelationConfirmed, result.Status)
	assert.Equal(t, domain.TrendFlat, result.Trend)
	assert.True(t, result.Status.Adjusts())

	assert.Equal(t, domain.CorrelationConfirmed, c.Check(context.Background(), domain.DirectionShort).Status)
}

func TestCorrelationFeedFailureIsUnavailable(t *testing.T) {
	c := newCorrelation(&fakeMarket{barsErr: errors.New("timeout")}, true)

	result := c.Check(context.Background(), domain.DirectionLong)
	assert.Equal(t, domain.CorrelationUnavailable, result.Status)
	assert.True(t, result.Confirmed(), "unavailable must never block a signal")
}

func TestCorrelationDisabled(t *testing.T) {
	c := newCorrelation(&fakeMarket{bars: risingBars()}, false)
	assert.Equal(t, domain.CorrelationDisabled, c.Check(context.Background(), domain.DirectionLong).Status)
}

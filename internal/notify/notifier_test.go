package notify

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

type stubSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (s *stubSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, message)
	return nil
}
func (s *stubSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersDisallowedEvents(t *testing.T) {
	s := &stubSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{EventTradeClose}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventTradeOpen, "t", "m"))
	assert.Empty(t, s.titles)

	require.NoError(t, n.Notify(context.Background(), EventTradeClose, "t", "m"))
	assert.Len(t, s.titles, 1)
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &stubSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventRiskAlert, "t", "m"))
	assert.Len(t, s.titles, 1)
}

func TestDispatchCollectsSenderErrors(t *testing.T) {
	bad := &stubSender{name: "bad", err: errors.New("boom")}
	good := &stubSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), EventRiskAlert, "t", "m")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	// The failing sender does not stop delivery to the others.
	assert.Len(t, good.titles, 1)
}

func TestTradeOpenedMessage(t *testing.T) {
	s := &stubSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	sig := domain.TradeSignal{
		Symbol:     "EURUSD",
		Direction:  domain.DirectionLong,
		EntryPrice: 1.07930,
		StopLoss:   1.07830,
		Zone:       domain.ExecutionZone{Type: domain.ZoneConfluence},
		Confidence: 95,
	}
	require.NoError(t, n.TradeOpened(context.Background(), sig, 42, 1.00))

	require.Len(t, s.bodies, 1)
	assert.Equal(t, "Trade Opened", s.titles[0])
	assert.Contains(t, s.bodies[0], "EURUSD")
	assert.Contains(t, s.bodies[0], "1.07930")
	assert.Contains(t, s.bodies[0], "Ticket: 42")
}

func TestDailySummaryMessage(t *testing.T) {
	s := &stubSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	stats := domain.DayStats{
		Date:            "2026-03-10",
		TotalTrades:     3,
		WinningTrades:   2,
		LosingTrades:    1,
		TotalProfit:     120.5,
		TotalPips:       12.1,
		StartingBalance: 10000,
		EndingBalance:   10120.5,
	}
	require.NoError(t, n.DailySummary(context.Background(), stats, 0.012))

	require.Len(t, s.bodies, 1)
	assert.Contains(t, s.bodies[0], "2026-03-10")
	assert.Contains(t, s.bodies[0], "Trades: 3")
	assert.Contains(t, s.bodies[0], "Challenge: +1.2%")
}

func TestZeroSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	require.NoError(t, n.Notify(context.Background(), EventBotStopped, "t", "m"))
}

package terminal

import (
	"encoding/json"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
)

// Bridge protocol actions. The terminal-side bridge script answers each
// request with a response carrying the same id.
const (
	actionSnapshot      = "snapshot"
	actionBars          = "bars"
	actionDailyBar      = "daily_bar"
	actionAccount       = "account"
	actionOrderOpen     = "order_open"
	actionOrderClose    = "order_close"
	actionOrderModify   = "order_modify"
	actionPositionsOpen = "positions"
)

// request is one command sent to the bridge.
type request struct {
	ID     int64          `json:"id"`
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// response is the bridge's answer. Data is decoded per-action by the caller.
type response struct {
	ID     int64           `json:"id"`
	Status string          `json:"status"` // "ok" or "error"
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"` // machine-readable, e.g. "REJECTED"
	Data   json.RawMessage `json:"data,omitempty"`
}

const (
	statusOK       = "ok"
	statusError    = "error"
	codeRejected   = "REJECTED"
	codeNotFound   = "NOT_FOUND"
	timeWireLayout = time.RFC3339
)

// wirePriceLevel mirrors one order-book level on the wire.
type wirePriceLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// wireBar mirrors an OHLC bar on the wire. Time is RFC3339.
type wireBar struct {
	Time       string  `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	TickVolume float64 `json:"tick_volume"`
}

func (b wireBar) toDomain() domain.Bar {
	t, _ := time.Parse(timeWireLayout, b.Time)
	return domain.Bar{
		Time:       t,
		Open:       b.Open,
		High:       b.High,
		Low:        b.Low,
		Close:      b.Close,
		TickVolume: b.TickVolume,
	}
}

// wireFib mirrors one Fibonacci level on the wire.
type wireFib struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// wireSnapshot is the bridge's market snapshot payload.
type wireSnapshot struct {
	Symbol      string           `json:"symbol"`
	Timestamp   string           `json:"timestamp"`
	Bid         float64          `json:"bid"`
	Ask         float64          `json:"ask"`
	Spread      float64          `json:"spread"`
	LastBar     wireBar          `json:"last_bar"`
	VWAP        float64          `json:"vwap"`
	BidAskDelta float64          `json:"bid_ask_delta"`
	SwingHigh   float64          `json:"swing_high"`
	SwingLow    float64          `json:"swing_low"`
	Fibs        []wireFib        `json:"fibs"`
	Bids        []wirePriceLevel `json:"bids"`
	Asks        []wirePriceLevel `json:"asks"`
}

func (s wireSnapshot) toDomain() domain.MarketSnapshot {
	ts, _ := time.Parse(timeWireLayout, s.Timestamp)

	snap := domain.MarketSnapshot{
		Symbol:      s.Symbol,
		Timestamp:   ts,
		Bid:         s.Bid,
		Ask:         s.Ask,
		Spread:      s.Spread,
		LastBar:     s.LastBar.toDomain(),
		VWAP:        s.VWAP,
		BidAskDelta: s.BidAskDelta,
		SwingHigh:   s.SwingHigh,
		SwingLow:    s.SwingLow,
	}
	for _, f := range s.Fibs {
		snap.Fibs = append(snap.Fibs, domain.FibLevel{Ratio: f.Ratio, Price: f.Price})
	}
	for _, l := range s.Bids {
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: l.Price, Volume: l.Volume})
	}
	for _, l := range s.Asks {
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: l.Price, Volume: l.Volume})
	}
	return snap
}

// wireAccount is the bridge's account info payload.
type wireAccount struct {
	Login    int64   `json:"login"`
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
	Currency string  `json:"currency"`
}

// wirePosition is one open position as reported by the bridge.
type wirePosition struct {
	Ticket       int64   `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Direction    string  `json:"direction"`
	Volume       float64 `json:"volume"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	StopLoss     float64 `json:"stop_loss"`
	Profit       float64 `json:"profit"`
	Pips         float64 `json:"pips"`
	OpenedAt     string  `json:"opened_at"`
}

func (p wirePosition) toDomain() domain.Position {
	opened, _ := time.Parse(timeWireLayout, p.OpenedAt)
	return domain.Position{
		Ticket:       p.Ticket,
		Symbol:       p.Symbol,
		Direction:    domain.Direction(p.Direction),
		Volume:       p.Volume,
		EntryPrice:   p.EntryPrice,
		CurrentPrice: p.CurrentPrice,
		StopLoss:     p.StopLoss,
		Profit:       p.Profit,
		Pips:         p.Pips,
		OpenedAt:     opened,
	}
}

// wireOpenResult is the payload of a successful order_open.
type wireOpenResult struct {
	Ticket int64 `json:"ticket"`
}

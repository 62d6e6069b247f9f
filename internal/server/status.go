package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/selimyuksel/iofae/internal/domain"
)

// statusHandler serves the read-only status endpoints.
type statusHandler struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	start  time.Time
}

// health responds with a liveness indicator.
// GET /api/health
func (h *statusHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.start).Round(time.Second).String(),
	})
}

// status reports the risk gate state, open positions, and the latest market
// snapshot summary.
// GET /api/status
func (h *statusHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := h.deps.Risk.DayState()
	allowed, reason := h.deps.Risk.CanTrade()

	resp := map[string]any{
		"symbol": h.cfg.Symbol,
		"risk": map[string]any{
			"date":               state.Date,
			"starting_balance":   state.StartingBalance,
			"realized_loss":      state.RealizedLoss,
			"trade_count":        state.TradeCount,
			"halted":             state.Halted,
			"can_trade":          allowed,
			"block_reason":       reason,
			"challenge_progress": h.deps.Risk.ChallengeProgress(state.StartingBalance),
		},
	}

	if positions, err := h.deps.Positions.List(ctx, h.cfg.Symbol); err == nil {
		resp["open_positions"] = positions
	} else {
		h.logger.WarnContext(ctx, "position list failed", slog.String("error", err.Error()))
	}

	snap, err := h.deps.Snapshots.Get(ctx, h.cfg.Symbol)
	if err == nil {
		resp["market"] = map[string]any{
			"timestamp": snap.Timestamp.UTC().Format(time.RFC3339),
			"bid":       snap.Bid,
			"ask":       snap.Ask,
			"spread":    snap.Spread,
			"vwap":      snap.VWAP,
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		h.logger.WarnContext(ctx, "snapshot read failed", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, resp)
}

// zoneView is the JSON shape of one scored zone.
type zoneView struct {
	Price     float64            `json:"price"`
	Score     float64            `json:"score"`
	Type      domain.ZoneType    `json:"type"`
	Direction domain.Direction   `json:"direction"`
	Trigger   float64            `json:"trigger_price"`
	StopLoss  float64            `json:"stop_loss"`
	Breakdown map[string]float64 `json:"breakdown"`
}

// zones rescans the zone map from the latest cached snapshot.
// GET /api/zones
func (h *statusHandler) zones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.deps.Snapshots.Get(ctx, h.cfg.Symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusServiceUnavailable, "no market snapshot available yet")
			return
		}
		h.logger.ErrorContext(ctx, "snapshot read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "snapshot read failed")
		return
	}

	scanned := h.deps.Zones.Scan(ctx, snap, h.cfg.ScanRangePips)

	views := make([]zoneView, 0, len(scanned))
	for _, z := range scanned {
		views = append(views, zoneView{
			Price:     z.Price,
			Score:     z.Score,
			Type:      z.Type,
			Direction: z.Direction,
			Trigger:   z.TriggerPrice,
			StopLoss:  z.StopLoss,
			Breakdown: map[string]float64{
				"vwap":         z.Breakdown.VWAP,
				"round_number": z.Breakdown.RoundNumber,
				"fibonacci":    z.Breakdown.Fibonacci,
				"dom_depth":    z.Breakdown.DOMDepth,
				"delta":        z.Breakdown.DeltaImbalance,
			},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    h.cfg.Symbol,
		"timestamp": snap.Timestamp.UTC().Format(time.RFC3339),
		"bid":       snap.Bid,
		"zones":     views,
	})
}

// todayStats aggregates today's closed trades.
// GET /api/stats/today
func (h *statusHandler) todayStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day := time.Now().UTC().Format("2006-01-02")
	stats, err := h.deps.Trades.TodayStats(ctx, day)
	if err != nil {
		h.logger.ErrorContext(ctx, "today stats query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "stats query failed")
		return
	}
	stats.Date = day

	writeJSON(w, http.StatusOK, map[string]any{
		"date":           stats.Date,
		"total_trades":   stats.TotalTrades,
		"winning_trades": stats.WinningTrades,
		"losing_trades":  stats.LosingTrades,
		"win_rate":       stats.WinRate(),
		"total_profit":   stats.TotalProfit,
		"total_pips":     stats.TotalPips,
	})
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

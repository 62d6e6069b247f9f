// Package position monitors open positions for exit conditions: stop-loss
// crossings, hold-time limits, order flow exhaustion, and trailing stop
// management.
package position

import "github.com/selimyuksel/iofae/internal/domain"

// historyCap bounds each rolling buffer; exhaustion checks only ever look at
// the trailing 50 observations.
const historyCap = 100

// Rolling is a fixed-capacity series of float64 observations. Oldest values
// fall off when the capacity is exceeded. Not safe for concurrent use.
type Rolling struct {
	buf []float64
	cap int
}

// NewRolling creates a rolling series with the given capacity.
func NewRolling(capacity int) *Rolling {
	return &Rolling{buf: make([]float64, 0, capacity), cap: capacity}
}

// Push appends an observation, evicting the oldest when full.
func (r *Rolling) Push(v float64) {
	if len(r.buf) == r.cap {
		copy(r.buf, r.buf[1:])
		r.buf = r.buf[:len(r.buf)-1]
	}
	r.buf = append(r.buf, v)
}

// Len returns the number of stored observations.
func (r *Rolling) Len() int { return len(r.buf) }

// TailMean returns the mean of the most recent n observations, or of all
// observations when fewer than n are stored. Returns 0 when empty.
func (r *Rolling) TailMean(n int) float64 {
	if len(r.buf) == 0 {
		return 0
	}
	if n > len(r.buf) {
		n = len(r.buf)
	}
	var sum float64
	for _, v := range r.buf[len(r.buf)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// TailRange returns max-min over the most recent n observations. Returns 0
// when fewer than 2 observations are stored.
func (r *Rolling) TailRange(n int) float64 {
	if len(r.buf) < 2 {
		return 0
	}
	if n > len(r.buf) {
		n = len(r.buf)
	}
	tail := r.buf[len(r.buf)-n:]
	lo, hi := tail[0], tail[0]
	for _, v := range tail[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}

// History accumulates the per-tick market observations that feed the
// exhaustion checks.
type History struct {
	Volumes *Rolling
	Spreads *Rolling
	Prices  *Rolling
}

// NewHistory creates empty buffers.
func NewHistory() *History {
	return &History{
		Volumes: NewRolling(historyCap),
		Spreads: NewRolling(historyCap),
		Prices:  NewRolling(historyCap),
	}
}

// Observe records one market snapshot.
func (h *History) Observe(snap domain.MarketSnapshot) {
	h.Volumes.Push(snap.LastBar.TickVolume)
	h.Spreads.Push(snap.Spread)
	h.Prices.Push(snap.Bid)
}

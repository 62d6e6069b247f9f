package signal

import (
	"fmt"
	"strings"
	"time"
)

// SessionConfig holds the active-session hours (UTC) and blackout windows.
type SessionConfig struct {
	LondonOpenHour  int
	LondonCloseHour int
	NewYorkOpenHour int
	NewYorkClose    int
	Blackouts       []string // "HH:MM-HH:MM", UTC
}

// blackout is one parsed blackout window, as minutes since midnight UTC.
type blackout struct {
	start int
	end   int
}

// Sessions answers whether the engine is allowed to look for entries at a
// given instant. New entries only happen inside the London or New York
// sessions and outside any blackout window.
type Sessions struct {
	cfg       SessionConfig
	blackouts []blackout
}

// NewSessions parses the configured blackout windows. Windows must already
// have passed config validation; a malformed entry is an error here too.
func NewSessions(cfg SessionConfig) (*Sessions, error) {
	s := &Sessions{cfg: cfg}
	for _, w := range cfg.Blackouts {
		b, err := parseBlackout(w)
		if err != nil {
			return nil, fmt.Errorf("signal: blackout %q: %w", w, err)
		}
		s.blackouts = append(s.blackouts, b)
	}
	return s, nil
}

// Active reports whether t falls inside a trading session.
func (s *Sessions) Active(t time.Time) bool {
	h := t.UTC().Hour()
	london := h >= s.cfg.LondonOpenHour && h < s.cfg.LondonCloseHour
	newYork := h >= s.cfg.NewYorkOpenHour && h < s.cfg.NewYorkClose
	return london || newYork
}

// Blackout reports whether t falls inside a configured blackout window.
func (s *Sessions) Blackout(t time.Time) bool {
	u := t.UTC()
	minute := u.Hour()*60 + u.Minute()
	for _, b := range s.blackouts {
		if minute >= b.start && minute < b.end {
			return true
		}
	}
	return false
}

func parseBlackout(w string) (blackout, error) {
	parts := strings.SplitN(w, "-", 2)
	if len(parts) != 2 {
		return blackout{}, fmt.Errorf("want HH:MM-HH:MM")
	}
	start, err := parseMinutes(parts[0])
	if err != nil {
		return blackout{}, err
	}
	end, err := parseMinutes(parts[1])
	if err != nil {
		return blackout{}, err
	}
	if end <= start {
		return blackout{}, fmt.Errorf("window end must follow start")
	}
	return blackout{start: start, end: end}, nil
}

func parseMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

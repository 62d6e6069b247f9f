package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSessions(t *testing.T, blackouts ...string) *Sessions {
	t.Helper()
	s, err := NewSessions(SessionConfig{
		LondonOpenHour:  7,
		LondonCloseHour: 16,
		NewYorkOpenHour: 12,
		NewYorkClose:    21,
		Blackouts:       blackouts,
	})
	require.NoError(t, err)
	return s
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestSessionHours(t *testing.T) {
	s := defaultSessions(t)

	assert.False(t, s.Active(at(6, 59)))
	assert.True(t, s.Active(at(7, 0)))   // London open
	assert.True(t, s.Active(at(14, 30))) // overlap
	assert.True(t, s.Active(at(20, 59))) // New York
	assert.False(t, s.Active(at(21, 0)))
	assert.False(t, s.Active(at(2, 0))) // Asia
}

func TestBlackoutWindows(t *testing.T) {
	s := defaultSessions(t, "12:25-12:40", "18:00-18:30")

	assert.False(t, s.Blackout(at(12, 24)))
	assert.True(t, s.Blackout(at(12, 25)))
	assert.True(t, s.Blackout(at(12, 39)))
	assert.False(t, s.Blackout(at(12, 40)))
	assert.True(t, s.Blackout(at(18, 15)))
}

func TestMalformedBlackoutRejected(t *testing.T) {
	_, err := NewSessions(SessionConfig{Blackouts: []string{"noon-ish"}})
	assert.Error(t, err)

	_, err = NewSessions(SessionConfig{Blackouts: []string{"14:00-13:00"}})
	assert.Error(t, err)
}

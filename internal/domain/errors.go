package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrTradingHalted      = errors.New("trading halted by lifetime drawdown latch")
	ErrTerminalDisconnect = errors.New("terminal bridge disconnected")
	ErrOrderRejected      = errors.New("order rejected by venue")
	ErrLockHeld           = errors.New("lock already held")
)

package main

import (
	"time"
)

var (
	_ Clocker       = (*Clock)(nil)
	_ TickerClocker = TickClock{}
)

// Clocker is an interface for getting current real time. Services read the
// time through it so that loan and return dates are predictable in tests.
type Clocker interface {
	Now() time.Time
}

// TickerClocker is a Clocker which can also provide a ticker. It matches
// zapcore.Clock so logs get timestamped by the app clock.
type TickerClocker interface {
	Clocker
	NewTicker(time.Duration) *time.Ticker
}

// Clock implements the Clocker interface.
type Clock struct {
	tz *time.Location
}

// NewClock returns a ready to use Clock with timezone sets
// to UTC in production environment and Local in dev env.
func NewClock(isProd bool) *Clock {
	if isProd {
		return &Clock{time.UTC}
	}
	return &Clock{time.Local}
}

// Now provides current clock time.
func (ck *Clock) Now() time.Time {
	return time.Now().In(ck.tz)
}

// TickClock adds real tickers to any Clocker.
type TickClock struct {
	Clocker
}

func NewTickClock(ck Clocker) TickClock {
	return TickClock{ck}
}

func (TickClock) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

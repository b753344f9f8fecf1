// Package clock wraps timer scheduling so components can own cancellable timers
// and tests can drive time explicitly.
package clock

import "time"

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

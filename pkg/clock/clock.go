// Package clock adapts github.com/benbjohnson/clock to the two operations
// the companion schedules with.
package clock

import (
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Timer is a cancellable handle for a scheduled callback
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer; false means it already fired or was stopped.
	Stop() bool
}

// Clock abstracts wall time and timer scheduling so that time-driven
// components can be driven deterministically in tests
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type wrapped struct {
	c bclock.Clock
}

// New returns the system clock
func New() Clock {
	return Wrap(bclock.New())
}

// Wrap adapts any benbjohnson clock
func Wrap(c bclock.Clock) Clock {
	return wrapped{c: c}
}

func (w wrapped) Now() time.Time {
	return w.c.Now()
}

func (w wrapped) AfterFunc(d time.Duration, f func()) Timer {
	return w.c.AfterFunc(d, f)
}

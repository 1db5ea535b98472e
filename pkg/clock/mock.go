package clock

import (
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
)

type timerState int

const (
	timerPending timerState = iota
	timerDue
	timerDone
)

// Mock is a manually advanced Clock backed by bclock.Mock. The library runs
// AfterFunc callbacks on their own goroutines; Mock joins them, so when
// Advance returns every callback that fell due has finished, including
// callbacks scheduled by other callbacks inside the window.
type Mock struct {
	mock *bclock.Mock

	mu       sync.Mutex
	timers   map[*mockTimer]time.Time
	inflight sync.WaitGroup
}

type mockTimer struct {
	m     *Mock
	t     *bclock.Timer
	state timerState
}

// NewMock creates a mock clock starting at the given time
func NewMock(start time.Time) *Mock {
	m := &Mock{
		mock:   bclock.NewMock(),
		timers: make(map[*mockTimer]time.Time),
	}
	m.mock.Set(start)
	return m
}

// Now returns the simulated time
func (m *Mock) Now() time.Time {
	return m.mock.Now()
}

// AfterFunc registers f to run once the simulated time reaches now+d
func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	mt := &mockTimer{m: m}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[mt] = m.mock.Now().Add(d)
	mt.t = m.mock.AfterFunc(d, func() { m.fire(mt, f) })
	return mt
}

// Advance moves the clock forward by d, deadline by deadline, and waits for
// every callback that falls due
func (m *Mock) Advance(d time.Duration) {
	target := m.mock.Now().Add(d)
	for {
		next, ok := m.markDue(target)
		if !ok {
			break
		}
		m.mock.Set(next)
		m.inflight.Wait()
	}
	m.mock.Set(target)
}

// Pending returns the number of timers that have not fired or been stopped
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// markDue finds the earliest deadline at or before target and marks every
// timer due at it. The library fires them all on the next Set.
func (m *Mock) markDue(target time.Time) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next time.Time
	found := false
	for _, when := range m.timers {
		if when.After(target) {
			continue
		}
		if !found || when.Before(next) {
			next, found = when, true
		}
	}
	if !found {
		return time.Time{}, false
	}

	for mt, when := range m.timers {
		if when.Equal(next) {
			mt.state = timerDue
			delete(m.timers, mt)
			m.inflight.Add(1)
		}
	}
	return next, true
}

func (m *Mock) fire(mt *mockTimer, f func()) {
	defer m.inflight.Done()

	m.mu.Lock()
	mt.state = timerDone
	m.mu.Unlock()

	f()
}

func (t *mockTimer) Stop() bool {
	m := t.m
	m.mu.Lock()
	defer m.mu.Unlock()

	stopped := t.t.Stop()
	switch t.state {
	case timerPending:
		delete(m.timers, t)
		t.state = timerDone
		return true
	case timerDue:
		if stopped {
			// marked due but cancelled before the library fired it
			t.state = timerDone
			m.inflight.Done()
			return true
		}
	}
	return false
}

// Package overrides holds short-lived presentation values that temporarily
// supersede what the profile would otherwise show.
package overrides

import (
	"sync"
	"time"

	"talking-pet/companion/pkg/clock"
)

// Facet names an overridable presentation slot
type Facet string

const (
	FacetMood      Facet = "mood"
	FacetAnimation Facet = "animation"
)

// Override is the active value of a facet and when it lapses
type Override struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

type entry struct {
	Override
	seq   uint64
	timer clock.Timer
}

// Store keeps at most one override per facet. Each override owns a single
// expiry timer; replacing or clearing the override stops that timer, and an
// expiry callback only clears the entry it was scheduled for.
type Store struct {
	clock    clock.Clock
	mu       sync.Mutex
	entries  map[Facet]*entry
	seq      uint64
	closed   bool
	onChange func(Facet)
}

// New creates an empty override store
func New(c clock.Clock) *Store {
	return &Store{
		clock:   c,
		entries: make(map[Facet]*entry),
	}
}

// OnChange registers a callback invoked after a facet is set, cleared or expires.
// It is called without the store lock held.
func (s *Store) OnChange(f func(Facet)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = f
}

// Set installs value for facet until d has elapsed, replacing any prior
// override. It does nothing after Close.
func (s *Store) Set(facet Facet, value string, d time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if prev, ok := s.entries[facet]; ok {
		prev.timer.Stop()
	}
	s.seq++
	e := &entry{
		Override: Override{Value: value, ExpiresAt: s.clock.Now().Add(d)},
		seq:      s.seq,
	}
	seq := e.seq
	e.timer = s.clock.AfterFunc(d, func() { s.expire(facet, seq) })
	s.entries[facet] = e
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(facet)
	}
}

// Clear drops the facet's override and cancels its timer
func (s *Store) Clear(facet Facet) {
	s.mu.Lock()
	e, ok := s.entries[facet]
	if ok {
		e.timer.Stop()
		delete(s.entries, facet)
	}
	notify := s.onChange
	s.mu.Unlock()

	if ok && notify != nil {
		notify(facet)
	}
}

// Get returns the facet's override if one is active
func (s *Store) Get(facet Facet) (Override, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[facet]
	if !ok || !s.clock.Now().Before(e.ExpiresAt) {
		return Override{}, false
	}
	return e.Override, true
}

// Effective returns the override value when active, otherwise fallback
func (s *Store) Effective(facet Facet, fallback string) string {
	if o, ok := s.Get(facet); ok {
		return o.Value
	}
	return fallback
}

// Active returns a copy of every unexpired override
func (s *Store) Active() map[Facet]Override {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	out := make(map[Facet]Override, len(s.entries))
	for facet, e := range s.entries {
		if now.Before(e.ExpiresAt) {
			out[facet] = e.Override
		}
	}
	return out
}

// Close cancels every pending expiry and drops all overrides
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for facet, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, facet)
	}
}

func (s *Store) expire(facet Facet, seq uint64) {
	s.mu.Lock()
	e, ok := s.entries[facet]
	if !ok || e.seq != seq {
		// superseded; a newer override owns this facet now
		s.mu.Unlock()
		return
	}
	delete(s.entries, facet)
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(facet)
	}
}

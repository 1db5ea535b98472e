package reminder

import (
	"sync"
	"time"

	"talking-pet/companion/internal/models"
	"talking-pet/companion/pkg/clock"
)

// Thresholds are the stat levels at or below which the pet wants attention
type Thresholds struct {
	Hunger  float64
	LowStat float64
}

// DefaultThresholds matches the backend's notion of a neglected pet
func DefaultThresholds() Thresholds {
	return Thresholds{Hunger: 30, LowStat: 30}
}

// NeedsAttention reports whether any stat is at or below its threshold
func (t Thresholds) NeedsAttention(p *models.Profile) bool {
	if p == nil {
		return false
	}
	return p.Hunger <= t.Hunger ||
		p.Energy <= t.LowStat ||
		p.Hygiene <= t.LowStat ||
		p.Fun <= t.LowStat ||
		p.Mood <= t.LowStat
}

// Skip reasons returned by Guard.Acquire
const (
	SkipNone      = ""
	SkipInFlight  = "in_flight"
	SkipChat      = "chat_pending"
	SkipSatisfied = "satisfied"
	SkipDebounced = "debounced"
)

// Guard serialises reminder requests and enforces the minimum spacing between them
type Guard struct {
	clock   clock.Clock
	spacing time.Duration

	mu          sync.Mutex
	inFlight    bool
	lastFiredAt time.Time
}

// NewGuard creates a guard with the given debounce window
func NewGuard(c clock.Clock, spacing time.Duration) *Guard {
	return &Guard{clock: c, spacing: spacing}
}

// Acquire claims the in-flight slot if a reminder may fire now. The checks
// run in order: in-flight, chat pending, attention, spacing. On success the
// caller must call Release.
func (g *Guard) Acquire(chatPending, needsAttention bool) (ok bool, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.inFlight:
		return false, SkipInFlight
	case chatPending:
		return false, SkipChat
	case !needsAttention:
		return false, SkipSatisfied
	case !g.lastFiredAt.IsZero() && g.clock.Now().Sub(g.lastFiredAt) < g.spacing:
		return false, SkipDebounced
	}
	g.inFlight = true
	return true, SkipNone
}

// MarkFired records a successful reminder at the current time
func (g *Guard) MarkFired() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastFiredAt = g.clock.Now()
}

// Release frees the in-flight slot
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
}

// InFlight reports whether a reminder request is outstanding
func (g *Guard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// LastFiredAt returns when the last reminder succeeded
func (g *Guard) LastFiredAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFiredAt
}

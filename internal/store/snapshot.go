package store

import (
	"time"

	"talking-pet/companion/internal/models"
	"talking-pet/companion/internal/overrides"
)

// Snapshot is a consistent, non-aliased copy of the observable state
type Snapshot struct {
	Profile          *models.Profile                        `json:"profile"`
	ShopItems        []models.ShopItem                      `json:"shop_items"`
	Loading          bool                                   `json:"loading"`
	Errors           map[Scope]string                       `json:"errors"`
	Chat             []models.ChatHistoryEntry              `json:"chat"`
	ChatPending      bool                                   `json:"chat_pending"`
	ChatResult       *models.ChatResult                     `json:"chat_result"`
	Mood             models.Mood                            `json:"mood"`
	Animation        string                                 `json:"animation"`
	Overrides        map[overrides.Facet]overrides.Override `json:"overrides"`
	RemindersRunning bool                                   `json:"reminders_running"`
	ReminderInFlight bool                                   `json:"reminder_in_flight"`
	LastReminderAt   *time.Time                             `json:"last_reminder_at,omitempty"`
}

// Snapshot captures the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Profile:     s.profile.Clone(),
		ShopItems:   append([]models.ShopItem(nil), s.shopItems...),
		Loading:     s.loading,
		Errors:      make(map[Scope]string, len(s.errs)),
		Chat:        append([]models.ChatHistoryEntry(nil), s.chat...),
		ChatPending: s.chatPending,
	}
	for scope, msg := range s.errs {
		snap.Errors[scope] = msg
	}
	if s.chatResult != nil {
		result := *s.chatResult
		snap.ChatResult = &result
	}
	snap.Mood = s.effectiveMoodLocked()
	s.mu.RUnlock()

	snap.Animation = s.EffectiveAnimation()
	snap.Overrides = s.overrides.Active()
	snap.RemindersRunning = s.scheduler.Running()
	snap.ReminderInFlight = s.guard.InFlight()
	if last := s.guard.LastFiredAt(); !last.IsZero() {
		snap.LastReminderAt = &last
	}
	return snap
}

// Profile returns a copy of the current profile, or nil before the first load
func (s *Store) Profile() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

// History returns a copy of the chat history
func (s *Store) History() []models.ChatHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatHistoryEntry(nil), s.chat...)
}

// ChatPending reports whether a chat exchange is in flight
func (s *Store) ChatPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatPending
}

// Err returns the last error message recorded for scope
func (s *Store) Err(scope Scope) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errs[scope]
}

// EffectiveMood is the mood override if active, otherwise the mood derived from stats
func (s *Store) EffectiveMood() models.Mood {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.effectiveMoodLocked()
}

func (s *Store) effectiveMoodLocked() models.Mood {
	derived := DeriveMood(s.profile, s.cfg.Thresholds.LowStat)
	return models.Mood(s.overrides.Effective(overrides.FacetMood, string(derived)))
}

// EffectiveAnimation is the animation override if active, otherwise ""
func (s *Store) EffectiveAnimation() string {
	return s.overrides.Effective(overrides.FacetAnimation, "")
}

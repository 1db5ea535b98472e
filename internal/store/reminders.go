package store

import (
	"context"
)

// Reminder outcomes reported alongside the guard's skip reasons
const (
	ReminderFired  = "fired"
	ReminderFailed = "failed"
)

// StartReminders begins the proactive reminder loop. Calling it while running is a no-op.
func (s *Store) StartReminders() {
	s.scheduler.Start()
	s.notify()
}

// StopReminders halts the loop and clears the in-flight guard
func (s *Store) StopReminders() {
	s.scheduler.Stop()
	s.guard.Release()
	s.notify()
}

// RemindersRunning reports whether the reminder loop is active
func (s *Store) RemindersRunning() bool {
	return s.scheduler.Running()
}

// MaybeSendReminder runs one attention check and, when every guard passes,
// asks the backend for a proactive message. Failures are logged and swallowed.
// It reports whether the reminder endpoint was called successfully.
func (s *Store) MaybeSendReminder(ctx context.Context) bool {
	s.mu.RLock()
	ok, reason := s.guard.Acquire(s.chatPending, s.cfg.Thresholds.NeedsAttention(s.profile))
	s.mu.RUnlock()
	if !ok {
		s.log.Debug("reminder skipped", "reason", reason)
		s.recorder.ReminderChecked(reason)
		return false
	}
	defer func() {
		s.guard.Release()
		s.notify()
	}()
	s.notify()

	resp, err := s.gateway.RequestReminder(ctx)
	if err != nil {
		s.log.LogWarn(err, "reminder request failed")
		s.recorder.ReminderChecked(ReminderFailed)
		return false
	}

	s.guard.MarkFired()
	s.recorder.ReminderChecked(ReminderFired)
	s.applyExchange(resp, false)
	return true
}

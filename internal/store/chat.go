package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"talking-pet/companion/internal/models"
)

// SendMessage sends a user message with the recent history and applies the reply.
// The user entry is appended before the request and stays on failure.
func (s *Store) SendMessage(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.chat = append(s.chat, s.newEntry(models.RoleUser, content))
	s.chatPending = true
	delete(s.errs, ScopeChat)
	window := s.historyWindowLocked()
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.chatPending = false
		s.mu.Unlock()
		s.notify()
	}()

	resp, err := s.gateway.SendChat(ctx, window)
	if err != nil {
		return s.setError(ScopeChat, fmt.Errorf("send chat: %w", err))
	}

	s.applyExchange(resp, true)
	return nil
}

// applyExchange installs a chat-shaped response: profile, result, overrides,
// history and narration. With alwaysAppend false an empty reply is not recorded.
func (s *Store) applyExchange(resp *models.ChatResponse, alwaysAppend bool) {
	result := resp.Response
	reply := strings.TrimSpace(result.Reply)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.profile = resp.Profile.Clone()
	s.chatResult = &result
	if alwaysAppend || reply != "" {
		s.chat = append(s.chat, s.newEntry(models.RoleAssistant, result.Reply))
	}
	s.mu.Unlock()

	s.applyResultOverrides(result)
	s.notify()

	if reply != "" {
		s.narrator.Play(result.Reply, result.EffectPrompt())
	}
}

// historyWindowLocked returns the trailing window of history as wire messages
func (s *Store) historyWindowLocked() []models.ChatMessage {
	start := 0
	if s.cfg.HistoryWindow > 0 && len(s.chat) > s.cfg.HistoryWindow {
		start = len(s.chat) - s.cfg.HistoryWindow
	}
	out := make([]models.ChatMessage, 0, len(s.chat)-start)
	for _, e := range s.chat[start:] {
		out = append(out, e.ChatMessage)
	}
	return out
}

func (s *Store) newEntry(role models.ChatRole, content string) models.ChatHistoryEntry {
	return models.ChatHistoryEntry{
		ID:          uuid.New().String(),
		ChatMessage: models.ChatMessage{Role: role, Content: content},
		At:          s.clock.Now(),
	}
}

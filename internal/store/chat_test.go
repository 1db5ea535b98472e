package store

import (
	"fmt"
	"testing"
	"time"

	"talking-pet/companion/internal/models"
	"talking-pet/companion/internal/overrides"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history(entries []models.ChatHistoryEntry) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ChatMessage)
	}
	return out
}

func TestSendMessageScenario(t *testing.T) {
	h := newHarness(t)
	h.gateway.chatGate = make(chan struct{})
	h.gateway.chatSeen = make(chan []models.ChatMessage, 1)
	h.gateway.profile = models.Profile{Name: "P", Mood: 20, Energy: 80}
	h.gateway.chat = models.ChatResponse{
		Response: models.ChatResult{Reply: "hello!", Mood: models.MoodHappy, Action: models.ActionNone},
		Profile:  models.Profile{Name: "P", Mood: 20, Energy: 80},
	}
	h.store.setOverride(overrides.FacetAnimation, "dancing.webm")

	done := make(chan error, 1)
	go func() { done <- h.store.SendMessage(t.Context(), "  hi ") }()

	sent := <-h.gateway.chatSeen
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, sent)
	assert.Equal(t, sent, history(h.store.History()), "user entry is appended before the reply")
	assert.True(t, h.store.ChatPending())

	close(h.gateway.chatGate)
	require.NoError(t, <-done)

	assert.Equal(t, []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello!"},
	}, history(h.store.History()))
	assert.False(t, h.store.ChatPending())
	assert.Equal(t, "P", h.store.Profile().Name)
	assert.Equal(t, models.MoodHappy, h.store.EffectiveMood())
	assert.Equal(t, "", h.store.EffectiveAnimation(), "a reply without animation clears the override")
	assert.Equal(t, []played{{"hello!", ""}}, h.narrator.played())

	snap := h.store.Snapshot()
	require.NotNil(t, snap.ChatResult)
	assert.Equal(t, "hello!", snap.ChatResult.Reply)

	h.clock.Advance(5999 * time.Millisecond)
	assert.Equal(t, models.MoodHappy, h.store.EffectiveMood())
	h.clock.Advance(time.Millisecond)
	assert.Equal(t, models.MoodSad, h.store.EffectiveMood(), "derived mood resumes after expiry")
}

func TestSendMessageInstallsAnimationAndEffect(t *testing.T) {
	h := newHarness(t)
	h.gateway.chat = models.ChatResponse{
		Response: models.ChatResult{
			Reply:     "wheee",
			Mood:      models.MoodHappy,
			Animation: strPtr("dancing.webm"),
			SFXPrompt: strPtr("party horn"),
		},
	}

	require.NoError(t, h.store.SendMessage(t.Context(), "dance"))
	assert.Equal(t, "dancing.webm", h.store.EffectiveAnimation())
	assert.Equal(t, []played{{"wheee", "party horn"}}, h.narrator.played())

	h.clock.Advance(6 * time.Second)
	assert.Equal(t, "", h.store.EffectiveAnimation())
}

func TestSendMessageIgnoresBlankContent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.SendMessage(t.Context(), " \n\t"))
	assert.Empty(t, h.store.History())
	assert.Empty(t, h.gateway.sent)
}

func TestSendMessageFailureKeepsUserEntry(t *testing.T) {
	h := newHarness(t)
	h.gateway.failWith("SendChat", errBackend)

	err := h.store.SendMessage(t.Context(), "hi")
	require.Error(t, err)
	assert.Equal(t, "backend exploded", h.store.Err(ScopeChat))
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}, history(h.store.History()))
	assert.False(t, h.store.ChatPending())
	assert.Empty(t, h.narrator.played())

	h.gateway.failWith("SendChat", nil)
	h.gateway.chat = models.ChatResponse{Response: models.ChatResult{Reply: "back"}}
	require.NoError(t, h.store.SendMessage(t.Context(), "again"))
	assert.Empty(t, h.store.Err(ScopeChat), "a new send clears the previous error")
}

func TestSendMessageTruncatesHistoryWindow(t *testing.T) {
	h := newHarness(t)
	h.gateway.chat = models.ChatResponse{Response: models.ChatResult{Reply: "ok"}}

	for i := range 8 {
		require.NoError(t, h.store.SendMessage(t.Context(), fmt.Sprintf("msg %d", i)))
	}

	assert.Len(t, h.store.History(), 16, "full history is retained locally")
	last := h.gateway.sent[len(h.gateway.sent)-1]
	require.Len(t, last, 12)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "msg 7"}, last[11])
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "msg 2"}, last[0])
}

func TestTranscribeAndSend(t *testing.T) {
	h := newHarness(t)
	h.gateway.text = "  feed me  "
	h.gateway.chat = models.ChatResponse{Response: models.ChatResult{Reply: "nom"}}

	text, err := h.store.TranscribeAndSend(t.Context(), []byte("webm"), "", "")
	require.NoError(t, err)
	assert.Equal(t, "feed me", text)
	assert.Len(t, h.store.History(), 2)

	h.gateway.text = "   "
	text, err = h.store.TranscribeAndSend(t.Context(), []byte("webm"), "", "")
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Len(t, h.gateway.sent, 1)

	_, err = h.store.Transcribe(t.Context(), nil, "", "")
	require.Error(t, err)
	assert.Equal(t, "no audio recorded", h.store.Err(ScopeSpeech))
}

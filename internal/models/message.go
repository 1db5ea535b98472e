package models

import (
	"time"
)

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is the wire form sent to the chat endpoint
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatHistoryEntry is a ChatMessage stamped on the client
type ChatHistoryEntry struct {
	ID string `json:"id"`
	ChatMessage
	At time.Time `json:"at"`
}

// ChatRequest is the chat endpoint body
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// Mood is the pet's expressed emotion
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodNeutral Mood = "neutral"
	MoodSad     Mood = "sad"
	MoodAngry   Mood = "angry"
	MoodTired   Mood = "tired"
)

// ChatEquip is an optional equip hint in a chat result
type ChatEquip struct {
	HatID        *string `json:"hat_id,omitempty"`
	BackgroundID *string `json:"background_id,omitempty"`
}

// ChatResult is the structured reply produced by chat, action feedback and reminders
type ChatResult struct {
	Reply     string     `json:"reply"`
	Mood      Mood       `json:"mood"`
	Action    Action     `json:"action"`
	Equip     *ChatEquip `json:"equip,omitempty"`
	Animation *string    `json:"animation,omitempty"`
	SFXPrompt *string    `json:"sfx_prompt,omitempty"`
}

// AnimationHint returns the animation clip or "" when absent
func (r ChatResult) AnimationHint() string {
	if r.Animation == nil {
		return ""
	}
	return *r.Animation
}

// EffectPrompt returns the sound effect prompt or "" when absent
func (r ChatResult) EffectPrompt() string {
	if r.SFXPrompt == nil {
		return ""
	}
	return *r.SFXPrompt
}

// ChatResponse pairs a ChatResult with the updated profile
type ChatResponse struct {
	Response ChatResult `json:"response"`
	Profile  Profile    `json:"profile"`
}

// ActionFeedbackRequest asks for narration of a completed action
type ActionFeedbackRequest struct {
	Action Action `json:"action"`
}

// SpeechRequest is the text-to-speech body
type SpeechRequest struct {
	Text string `json:"text"`
}

// SoundEffectRequest is the sound effect body
type SoundEffectRequest struct {
	Prompt string `json:"prompt"`
}

// TranscriptResponse is the speech-to-text result
type TranscriptResponse struct {
	Text string `json:"text"`
}

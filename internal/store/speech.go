package store

import (
	"context"
	"fmt"
	"strings"

	apperrors "talking-pet/companion/pkg/errors"
)

// Transcribe converts recorded audio to text via the backend
func (s *Store) Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	if len(audio) == 0 {
		return "", s.setError(ScopeSpeech, apperrors.NewBadRequestError(apperrors.CodeBadRequest, "no audio recorded"))
	}

	s.clearError(ScopeSpeech)
	text, err := s.gateway.TranscribeSpeech(ctx, audio, filename, contentType)
	if err != nil {
		return "", s.setError(ScopeSpeech, fmt.Errorf("transcribe: %w", err))
	}
	return strings.TrimSpace(text), nil
}

// TranscribeAndSend transcribes audio and sends the text as a chat message.
// An empty transcript is returned without sending anything.
func (s *Store) TranscribeAndSend(ctx context.Context, audio []byte, filename, contentType string) (string, error) {
	text, err := s.Transcribe(ctx, audio, filename, contentType)
	if err != nil || text == "" {
		return text, err
	}
	return text, s.SendMessage(ctx, text)
}

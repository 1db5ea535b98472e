package store

import (
	"context"
	"fmt"

	"talking-pet/companion/internal/models"
	"talking-pet/companion/internal/overrides"
	apperrors "talking-pet/companion/pkg/errors"
)

// ActionAnimations maps each care action to the clip played while it takes effect
var ActionAnimations = map[models.Action]string{
	models.ActionFeed:  "eat.webm",
	models.ActionSleep: "chilling_cat.webm",
	models.ActionClean: "clean.webm",
	models.ActionPlay:  "dancing.webm",
}

// Action performs a care action. Narrative feedback is requested in the
// background and its failure never reaches the caller.
func (s *Store) Action(ctx context.Context, action models.Action) error {
	anim, ok := ActionAnimations[action]
	if !ok {
		return s.setError(ScopeAction, apperrors.NewBadRequestError(apperrors.CodeUnknownAction,
			fmt.Sprintf("unknown action %q", action)))
	}

	if s.Profile() == nil {
		// A failed load is recorded under the profile scope; the action still proceeds.
		_ = s.LoadProfile(ctx)
	}

	s.clearError(ScopeAction)
	p, err := s.gateway.PerformAction(ctx, action)
	if err != nil {
		return s.setError(ScopeAction, fmt.Errorf("perform %s: %w", action, err))
	}
	s.replaceProfile(p)
	s.setOverride(overrides.FacetAnimation, anim)

	s.goBackground(func(ctx context.Context) {
		s.narrateAction(ctx, action)
	})
	return nil
}

func (s *Store) narrateAction(ctx context.Context, action models.Action) {
	resp, err := s.gateway.RequestActionFeedback(ctx, action)
	if err != nil {
		s.log.LogWarn(err, "action feedback failed", "action", action)
		return
	}
	s.narrator.Play(resp.Response.Reply, resp.Response.EffectPrompt())
}

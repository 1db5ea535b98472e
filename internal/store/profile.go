package store

import (
	"context"
	"fmt"
	"strings"

	"talking-pet/companion/internal/models"
	apperrors "talking-pet/companion/pkg/errors"
)

// LoadProfile fetches the profile from the backend and replaces local state
func (s *Store) LoadProfile(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	delete(s.errs, ScopeProfile)
	s.mu.Unlock()
	s.notify()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.notify()
	}()

	p, err := s.gateway.GetProfile(ctx)
	if err != nil {
		return s.setError(ScopeProfile, fmt.Errorf("load profile: %w", err))
	}
	s.replaceProfile(p)
	return nil
}

// LoadShop returns the shop catalog, served from cache unless refresh is set
func (s *Store) LoadShop(ctx context.Context, refresh bool) ([]models.ShopItem, error) {
	if !refresh {
		if items, ok := s.shopCache.Get(shopCacheKey); ok {
			return append([]models.ShopItem(nil), items...), nil
		}
	}

	s.clearError(ScopeShop)
	items, err := s.gateway.GetShop(ctx)
	if err != nil {
		return nil, s.setError(ScopeShop, fmt.Errorf("load shop: %w", err))
	}
	s.shopCache.Set(shopCacheKey, items)

	s.mu.Lock()
	s.shopItems = append([]models.ShopItem(nil), items...)
	s.mu.Unlock()
	s.notify()

	return append([]models.ShopItem(nil), items...), nil
}

// Buy purchases an item and installs the returned profile
func (s *Store) Buy(ctx context.Context, itemID string) error {
	return s.itemCall(ctx, ScopePurchase, itemID, s.gateway.BuyItem)
}

// Equip equips an owned item and installs the returned profile. Once a
// profile is loaded, items it does not own are rejected without a backend call.
func (s *Store) Equip(ctx context.Context, itemID string) error {
	id := strings.TrimSpace(itemID)
	s.mu.RLock()
	p := s.profile
	s.mu.RUnlock()
	if p != nil && id != "" && !p.Owns(id) {
		return s.setError(ScopeEquip, apperrors.NewBadRequestError(apperrors.CodeBadRequest, "item is not owned: "+id))
	}
	return s.itemCall(ctx, ScopeEquip, itemID, s.gateway.EquipItem)
}

func (s *Store) itemCall(ctx context.Context, scope Scope, itemID string, call func(context.Context, string) (*models.Profile, error)) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return s.setError(scope, apperrors.NewBadRequestError(apperrors.CodeBadRequest, "item id is required"))
	}

	s.clearError(scope)
	p, err := call(ctx, itemID)
	if err != nil {
		return s.setError(scope, fmt.Errorf("%s %s: %w", scope, itemID, err))
	}
	s.replaceProfile(p)
	return nil
}

// SubmitMinigame reports a finished minigame and installs the rewarded profile
func (s *Store) SubmitMinigame(ctx context.Context, result models.MinigameResult) error {
	if result.Score < 0 || result.DurationMS < 0 {
		return s.setError(ScopeMinigame, apperrors.NewBadRequestError(apperrors.CodeBadRequest, "score and duration must not be negative"))
	}

	s.clearError(ScopeMinigame)
	p, err := s.gateway.SubmitMinigame(ctx, result)
	if err != nil {
		return s.setError(ScopeMinigame, fmt.Errorf("submit minigame: %w", err))
	}
	s.replaceProfile(p)
	return nil
}

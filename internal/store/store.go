// Package store is the companion's composition root: it owns the pet profile,
// chat history, overrides and pending flags, and wires the backend gateway,
// playback and reminder scheduling together.
package store

import (
	"context"
	"sync"
	"time"

	"talking-pet/companion/internal/models"
	"talking-pet/companion/internal/overrides"
	"talking-pet/companion/internal/reminder"
	"talking-pet/companion/pkg/cache"
	"talking-pet/companion/pkg/clock"
	apperrors "talking-pet/companion/pkg/errors"
	"talking-pet/companion/pkg/logger"
)

// Gateway is the subset of the pet backend the store consumes
type Gateway interface {
	GetProfile(ctx context.Context) (*models.Profile, error)
	GetShop(ctx context.Context) ([]models.ShopItem, error)
	PerformAction(ctx context.Context, action models.Action) (*models.Profile, error)
	BuyItem(ctx context.Context, itemID string) (*models.Profile, error)
	EquipItem(ctx context.Context, itemID string) (*models.Profile, error)
	SubmitMinigame(ctx context.Context, result models.MinigameResult) (*models.Profile, error)
	SendChat(ctx context.Context, messages []models.ChatMessage) (*models.ChatResponse, error)
	RequestActionFeedback(ctx context.Context, action models.Action) (*models.ChatResponse, error)
	RequestReminder(ctx context.Context) (*models.ChatResponse, error)
	TranscribeSpeech(ctx context.Context, audio []byte, filename, contentType string) (string, error)
}

// Narrator speaks a reply and its optional sound effect without blocking
type Narrator interface {
	Play(text, effectPrompt string)
}

// Recorder observes store events for metrics
type Recorder interface {
	ReminderChecked(outcome string)
	OverrideSet(facet string)
}

type nopRecorder struct{}

func (nopRecorder) ReminderChecked(string) {}
func (nopRecorder) OverrideSet(string)     {}

// Scope identifies which user-facing operation an error belongs to
type Scope string

const (
	ScopeProfile  Scope = "profile"
	ScopeShop     Scope = "shop"
	ScopeAction   Scope = "action"
	ScopePurchase Scope = "purchase"
	ScopeEquip    Scope = "equip"
	ScopeMinigame Scope = "minigame"
	ScopeChat     Scope = "chat"
	ScopeSpeech   Scope = "speech"
)

// Config calibrates the store
type Config struct {
	OverrideDuration    time.Duration
	HistoryWindow       int
	Thresholds          reminder.Thresholds
	ReminderMinInterval time.Duration
	ReminderMaxInterval time.Duration
	ReminderSpacing     time.Duration
	ShopCacheTTL        time.Duration
}

// DefaultConfig returns the standard calibration
func DefaultConfig() Config {
	return Config{
		OverrideDuration:    6 * time.Second,
		HistoryWindow:       12,
		Thresholds:          reminder.DefaultThresholds(),
		ReminderMinInterval: 20 * time.Second,
		ReminderMaxInterval: 50 * time.Second,
		ReminderSpacing:     20 * time.Second,
		ShopCacheTTL:        5 * time.Minute,
	}
}

// Option customises a Store
type Option func(*Store)

// WithRecorder reports reminder and override events to r
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

const shopCacheKey = "catalog"

// Store holds all observable companion state. Every mutation happens under mu
// and mu is never held across a backend call or audio wait.
type Store struct {
	gateway   Gateway
	narrator  Narrator
	overrides *overrides.Store
	guard     *reminder.Guard
	scheduler *reminder.Scheduler
	shopCache *cache.Cache[string, []models.ShopItem]
	clock     clock.Clock
	log       *logger.Logger
	recorder  Recorder
	cfg       Config

	mu          sync.RWMutex
	profile     *models.Profile
	shopItems   []models.ShopItem
	loading     bool
	errs        map[Scope]string
	chat        []models.ChatHistoryEntry
	chatPending bool
	chatResult  *models.ChatResult
	closed      bool

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New builds a store. The reminder loop is created stopped.
func New(gw Gateway, narrator Narrator, cfg Config, c clock.Clock, log *logger.Logger, opts ...Option) *Store {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Store{
		gateway:     gw,
		narrator:    narrator,
		overrides:   overrides.New(c),
		guard:       reminder.NewGuard(c, cfg.ReminderSpacing),
		shopCache:   cache.New[string, []models.ShopItem](c, cfg.ShopCacheTTL, 1),
		clock:       c,
		log:         log.Named("store"),
		recorder:    nopRecorder{},
		cfg:         cfg,
		errs:        make(map[Scope]string),
		subscribers: make(map[int]func(Snapshot)),
		bgCtx:       bgCtx,
		bgCancel:    bgCancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.scheduler = reminder.NewScheduler(c, cfg.ReminderMinInterval, cfg.ReminderMaxInterval,
		func(ctx context.Context) { s.MaybeSendReminder(ctx) }, log)
	s.overrides.OnChange(func(overrides.Facet) { s.notify() })

	return s
}

// Subscribe registers f to receive a snapshot after every state change.
// f runs synchronously and must not block. The returned func unsubscribes.
func (s *Store) Subscribe(f func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = f
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

// ErrClosed is returned by operations started after Close
var ErrClosed = apperrors.NewUnavailableError("companion store is closed")

// Close stops reminders, waits for a reminder cycle or background work that
// is still running, then cancels override timers. State no longer changes
// once Close has begun.
func (s *Store) Close() {
	s.StopReminders()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.bgCancel()
	s.scheduler.Wait()
	s.bg.Wait()
	s.overrides.Close()
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Wait blocks until background work started by the store has finished
func (s *Store) Wait() {
	s.bg.Wait()
}

func (s *Store) notify() {
	if s.isClosed() {
		return
	}
	s.subMu.Lock()
	if len(s.subscribers) == 0 {
		s.subMu.Unlock()
		return
	}
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, f := range s.subscribers {
		subs = append(subs, f)
	}
	s.subMu.Unlock()

	snap := s.Snapshot()
	for _, f := range subs {
		f(snap)
	}
}

// setError records err for scope and returns it unchanged
func (s *Store) setError(scope Scope, err error) error {
	s.mu.Lock()
	if !s.closed {
		s.errs[scope] = apperrors.Message(err)
	}
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Store) clearError(scope Scope) {
	s.mu.Lock()
	delete(s.errs, scope)
	s.mu.Unlock()
}

// replaceProfile installs a server profile wholesale
func (s *Store) replaceProfile(p *models.Profile) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.profile = p.Clone()
	s.mu.Unlock()
	s.notify()
}

// goBackground runs f detached from the caller, bounded by the store's lifetime
func (s *Store) goBackground(f func(ctx context.Context)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		f(s.bgCtx)
	}()
}

// applyResultOverrides installs the mood override and either the animation
// override or, when the result carries no animation, clears it
func (s *Store) applyResultOverrides(result models.ChatResult) {
	s.setOverride(overrides.FacetMood, string(result.Mood))
	if anim := result.AnimationHint(); anim != "" {
		s.setOverride(overrides.FacetAnimation, anim)
	} else {
		s.overrides.Clear(overrides.FacetAnimation)
	}
}

func (s *Store) setOverride(facet overrides.Facet, value string) {
	if s.isClosed() {
		return
	}
	s.overrides.Set(facet, value, s.cfg.OverrideDuration)
	s.recorder.OverrideSet(string(facet))
}

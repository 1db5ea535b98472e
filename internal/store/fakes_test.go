package store

import (
	"context"
	"sync"

	"talking-pet/companion/internal/models"
	apperrors "talking-pet/companion/pkg/errors"

	"github.com/stretchr/testify/mock"
)

// fakeGateway serves canned responses. Calls are recorded on the embedded
// mock; failWith swaps a method's error.
type fakeGateway struct {
	mock.Mock
	mu sync.Mutex

	profile  models.Profile
	shop     []models.ShopItem
	chat     models.ChatResponse
	feedback models.ChatResponse
	reminder models.ChatResponse
	text     string

	// chatGate, when set, blocks SendChat until it is closed
	chatGate chan struct{}
	chatSeen chan []models.ChatMessage
	// reminderGate, when set, blocks RequestReminder until it is closed,
	// ignoring the context like a slow backend whose reply is already in flight
	reminderGate chan struct{}
	reminderSeen chan struct{}

	sent [][]models.ChatMessage

	current map[string]*mock.Call
}

var gatewayArity = map[string]int{
	"GetProfile":            0,
	"GetShop":               0,
	"PerformAction":         1,
	"BuyItem":               1,
	"EquipItem":             1,
	"SubmitMinigame":        1,
	"SendChat":              0,
	"RequestActionFeedback": 1,
	"RequestReminder":       0,
	"TranscribeSpeech":      0,
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{
		profile: models.Profile{Name: "Tom", Hunger: 80, Energy: 80, Hygiene: 80, Fun: 80, Mood: 80},
		current: make(map[string]*mock.Call),
	}
	for method := range gatewayArity {
		g.failWith(method, nil)
	}
	return g
}

// failWith makes every later call to method return err; nil restores success
func (g *fakeGateway) failWith(method string, err error) {
	if call, ok := g.current[method]; ok {
		call.Unset()
	}
	args := make([]any, gatewayArity[method])
	for i := range args {
		args[i] = mock.Anything
	}
	g.current[method] = g.On(method, args...).Return(err)
}

func (g *fakeGateway) profileResult(method string, args ...any) (*models.Profile, error) {
	if err := g.MethodCalled(method, args...).Error(0); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profile.Clone(), nil
}

func (g *fakeGateway) GetProfile(context.Context) (*models.Profile, error) {
	return g.profileResult("GetProfile")
}

func (g *fakeGateway) GetShop(context.Context) ([]models.ShopItem, error) {
	if err := g.MethodCalled("GetShop").Error(0); err != nil {
		return nil, err
	}
	return g.shop, nil
}

func (g *fakeGateway) PerformAction(_ context.Context, action models.Action) (*models.Profile, error) {
	return g.profileResult("PerformAction", action)
}

func (g *fakeGateway) BuyItem(_ context.Context, itemID string) (*models.Profile, error) {
	return g.profileResult("BuyItem", itemID)
}

func (g *fakeGateway) EquipItem(_ context.Context, itemID string) (*models.Profile, error) {
	return g.profileResult("EquipItem", itemID)
}

func (g *fakeGateway) SubmitMinigame(_ context.Context, result models.MinigameResult) (*models.Profile, error) {
	return g.profileResult("SubmitMinigame", result)
}

func (g *fakeGateway) SendChat(ctx context.Context, messages []models.ChatMessage) (*models.ChatResponse, error) {
	g.mu.Lock()
	g.sent = append(g.sent, messages)
	gate, seen := g.chatGate, g.chatSeen
	g.mu.Unlock()

	if seen != nil {
		seen <- messages
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := g.MethodCalled("SendChat").Error(0); err != nil {
		return nil, err
	}
	resp := g.chat
	return &resp, nil
}

func (g *fakeGateway) RequestActionFeedback(_ context.Context, action models.Action) (*models.ChatResponse, error) {
	if err := g.MethodCalled("RequestActionFeedback", action).Error(0); err != nil {
		return nil, err
	}
	resp := g.feedback
	return &resp, nil
}

func (g *fakeGateway) RequestReminder(context.Context) (*models.ChatResponse, error) {
	g.mu.Lock()
	gate, seen := g.reminderGate, g.reminderSeen
	g.reminderSeen = nil
	g.mu.Unlock()
	if seen != nil {
		close(seen)
	}
	if gate != nil {
		<-gate
	}
	if err := g.MethodCalled("RequestReminder").Error(0); err != nil {
		return nil, err
	}
	resp := g.reminder
	return &resp, nil
}

func (g *fakeGateway) TranscribeSpeech(context.Context, []byte, string, string) (string, error) {
	if err := g.MethodCalled("TranscribeSpeech").Error(0); err != nil {
		return "", err
	}
	return g.text, nil
}

type played struct {
	text   string
	effect string
}

type fakeNarrator struct {
	mu    sync.Mutex
	plays []played
}

func (n *fakeNarrator) Play(text, effectPrompt string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.plays = append(n.plays, played{text, effectPrompt})
}

func (n *fakeNarrator) played() []played {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]played(nil), n.plays...)
}

type fakeRecorder struct {
	mu        sync.Mutex
	reminders []string
	overrides []string
}

func (r *fakeRecorder) ReminderChecked(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reminders = append(r.reminders, outcome)
}

func (r *fakeRecorder) OverrideSet(facet string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides = append(r.overrides, facet)
}

var errBackend = apperrors.NewGatewayError(500, "backend exploded")

func strPtr(s string) *string { return &s }

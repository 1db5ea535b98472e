package models

// Profile is the authoritative pet state returned by the backend. Stats are
// server-owned; the client never clamps or recomputes them.
type Profile struct {
	ID            int               `json:"id"`
	Name          string            `json:"name"`
	Coins         int               `json:"coins"`
	Level         int               `json:"level"`
	XP            int               `json:"xp"`
	Hunger        float64           `json:"hunger"`
	Energy        float64           `json:"energy"`
	Hygiene       float64           `json:"hygiene"`
	Fun           float64           `json:"fun"`
	Mood          float64           `json:"mood"`
	LastUpdated   string            `json:"last_updated"`
	OwnedItems    []string          `json:"owned_items"`
	EquippedItems map[string]string `json:"equipped_items"`
}

// Clone returns a deep copy so snapshots never alias store state
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.OwnedItems = append([]string(nil), p.OwnedItems...)
	if p.EquippedItems != nil {
		c.EquippedItems = make(map[string]string, len(p.EquippedItems))
		for k, v := range p.EquippedItems {
			c.EquippedItems[k] = v
		}
	}
	return &c
}

// Owns reports whether the item id is in the owned set
func (p *Profile) Owns(itemID string) bool {
	for _, id := range p.OwnedItems {
		if id == itemID {
			return true
		}
	}
	return false
}

// Action is a care action the pet accepts
type Action string

const (
	ActionFeed  Action = "feed"
	ActionSleep Action = "sleep"
	ActionClean Action = "clean"
	ActionPlay  Action = "play"
	ActionNone  Action = "none"
)

// CareActions lists the actions accepted by the actions endpoint
var CareActions = []Action{ActionFeed, ActionSleep, ActionClean, ActionPlay}

// ParseAction validates a care action name
func ParseAction(s string) (Action, bool) {
	for _, a := range CareActions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// ActionResponse wraps the profile returned by mutating endpoints
type ActionResponse struct {
	Profile Profile `json:"profile"`
	Message string  `json:"message,omitempty"`
}

// MinigameResult is the payload for a finished mini-game round
type MinigameResult struct {
	Score      int   `json:"score"`
	DurationMS int64 `json:"duration_ms"`
}

package store

import (
	"talking-pet/companion/internal/models"
)

// DeriveMood maps profile stats to the mood shown when no override is active
func DeriveMood(p *models.Profile, lowStat float64) models.Mood {
	if p == nil {
		return models.MoodNeutral
	}
	switch {
	case p.Mood >= 70:
		return models.MoodHappy
	case p.Energy <= lowStat:
		return models.MoodTired
	case p.Mood >= 40:
		return models.MoodNeutral
	default:
		return models.MoodSad
	}
}

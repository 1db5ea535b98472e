package playback

import (
	"context"

	"talking-pet/companion/pkg/resilience"
)

type guardedSynthesizer struct {
	next    Synthesizer
	breaker *resilience.CircuitBreaker
}

// Guard routes synthesis calls through a circuit breaker so a backend whose
// speech endpoints keep failing is not asked again until the cooldown lapses
func Guard(next Synthesizer, breaker *resilience.CircuitBreaker) Synthesizer {
	return &guardedSynthesizer{next: next, breaker: breaker}
}

func (g *guardedSynthesizer) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	var data []byte
	err := g.breaker.Execute(func() error {
		var err error
		data, err = g.next.SynthesizeSpeech(ctx, text)
		return err
	})
	return data, err
}

func (g *guardedSynthesizer) SynthesizeSoundEffect(ctx context.Context, prompt string) ([]byte, error) {
	var data []byte
	err := g.breaker.Execute(func() error {
		var err error
		data, err = g.next.SynthesizeSoundEffect(ctx, prompt)
		return err
	})
	return data, err
}

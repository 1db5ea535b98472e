// Package playback sequences spoken replies and their optional sound effects
// on the exclusive audio output.
package playback

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"talking-pet/companion/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Playback outcomes reported to the Recorder
const (
	OutcomeCompleted  = "completed"
	OutcomeSuperseded = "superseded"
	OutcomeFailed     = "failed"
)

// Synthesizer fetches audio payloads from the backend
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
	SynthesizeSoundEffect(ctx context.Context, prompt string) ([]byte, error)
}

// Recorder observes how each sequence ended
type Recorder interface {
	PlaybackFinished(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) PlaybackFinished(string) {}

// Sequencer plays at most one speech+effect sequence at a time. Every Play
// call takes a new generation token; a sequence only touches the output
// while its token is still the latest one.
type Sequencer struct {
	synth    Synthesizer
	player   Player
	log      *logger.Logger
	recorder Recorder

	token atomic.Uint64

	mu     sync.Mutex
	speech Clip
	effect Clip
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customises a Sequencer
type Option func(*Sequencer)

// WithRecorder reports sequence outcomes to r
func WithRecorder(r Recorder) Option {
	return func(s *Sequencer) { s.recorder = r }
}

// NewSequencer creates a sequencer over the given synthesizer and player
func NewSequencer(synth Synthesizer, player Player, log *logger.Logger, opts ...Option) *Sequencer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sequencer{
		synth:    synth,
		player:   player,
		log:      log.Named("playback"),
		recorder: nopRecorder{},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play speaks text and then plays the effect described by effectPrompt, if any.
// It returns immediately; failures are logged and never reported to the caller.
// A later Play call supersedes this one even if this one's fetch finishes last.
func (s *Sequencer) Play(text, effectPrompt string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	token := s.token.Add(1)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		outcome := s.run(s.ctx, token, text, strings.TrimSpace(effectPrompt))
		s.recorder.PlaybackFinished(outcome)
	}()
}

// Generation returns the token of the most recent Play call
func (s *Sequencer) Generation() uint64 {
	return s.token.Load()
}

// Wait blocks until every started sequence has returned
func (s *Sequencer) Wait() {
	s.wg.Wait()
}

// Close stops current audio, releases its resources and waits for
// outstanding sequences. Play is a no-op afterwards.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.token.Add(1)
	s.resetLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	// a sequence may have installed a clip between reset and cancel
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

func (s *Sequencer) run(ctx context.Context, token uint64, text, effectPrompt string) string {
	speechData, effectData, err := s.fetch(ctx, text, effectPrompt)
	if err != nil {
		s.log.LogWarn(err, "Speech playback failed", "generation", token)
		return OutcomeFailed
	}

	speech, outcome := s.install(token, speechData, &s.speech, true)
	if speech == nil {
		return outcome
	}
	s.playToEnd(ctx, speech, token)

	if effectData == nil {
		return OutcomeCompleted
	}

	effect, outcome := s.install(token, effectData, &s.effect, false)
	if effect == nil {
		return outcome
	}
	s.playToEnd(ctx, effect, token)

	return OutcomeCompleted
}

// fetch downloads the speech clip and, when a prompt is given, the effect clip in parallel
func (s *Sequencer) fetch(ctx context.Context, text, effectPrompt string) ([]byte, []byte, error) {
	var speechData, effectData []byte

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.synth.SynthesizeSpeech(gctx, text)
		speechData = data
		return err
	})
	if effectPrompt != "" {
		g.Go(func() error {
			data, err := s.synth.SynthesizeSoundEffect(gctx, effectPrompt)
			effectData = data
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return speechData, effectData, nil
}

// install loads data into a clip stored in slot, provided token is still current.
// When reset is set the previous sequence's clips are stopped and released first.
func (s *Sequencer) install(token uint64, data []byte, slot *Clip, reset bool) (Clip, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || token != s.token.Load() {
		s.log.Debug("Discarding stale playback", "generation", token)
		return nil, OutcomeSuperseded
	}
	if reset {
		s.resetLocked()
	}

	clip, err := s.player.Load(data)
	if err != nil {
		s.log.LogWarn(err, "Failed to load audio clip", "generation", token)
		return nil, OutcomeFailed
	}
	*slot = clip
	return clip, ""
}

func (s *Sequencer) playToEnd(ctx context.Context, clip Clip, token uint64) {
	if err := clip.Play(ctx); err != nil {
		// an error ends the clip the same way natural completion does
		s.log.Debug("Clip ended with error", "generation", token, "error", err.Error())
	}
}

// resetLocked stops and releases the current clips. Caller holds mu.
func (s *Sequencer) resetLocked() {
	for _, slot := range []*Clip{&s.speech, &s.effect} {
		if *slot == nil {
			continue
		}
		(*slot).Stop()
		(*slot).Release()
		*slot = nil
	}
}

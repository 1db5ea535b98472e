package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"
)

// fakeSynth returns the request text as audio. Calls are recorded on the
// embedded mock; failWith makes one request fail. Requests whose text has a
// gate block until the gate is closed or the context is cancelled.
type fakeSynth struct {
	mock.Mock
	mu       sync.Mutex
	gates    map[string]chan struct{}
	defaults map[string]*mock.Call
}

func newFakeSynth() *fakeSynth {
	f := &fakeSynth{gates: map[string]chan struct{}{}, defaults: map[string]*mock.Call{}}
	for _, method := range []string{"SynthesizeSpeech", "SynthesizeSoundEffect"} {
		f.defaults[method] = f.On(method, mock.Anything).Return(nil)
	}
	return f
}

// failWith makes method fail with err for arg. The catch-all success is
// re-registered after it since expectations match in order.
func (f *fakeSynth) failWith(method, arg string, err error) {
	f.defaults[method].Unset()
	f.On(method, arg).Return(err)
	f.defaults[method] = f.On(method, mock.Anything).Return(nil)
}

func (f *fakeSynth) gate(key string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[key] = ch
	return ch
}

func (f *fakeSynth) wait(ctx context.Context, key string) error {
	f.mu.Lock()
	ch := f.gates[key]
	f.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSynth) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	err := f.MethodCalled("SynthesizeSpeech", text).Error(0)
	if werr := f.wait(ctx, text); werr != nil {
		return nil, werr
	}
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (f *fakeSynth) SynthesizeSoundEffect(ctx context.Context, prompt string) ([]byte, error) {
	err := f.MethodCalled("SynthesizeSoundEffect", prompt).Error(0)
	if werr := f.wait(ctx, "sfx:"+prompt); werr != nil {
		return nil, werr
	}
	if err != nil {
		return nil, err
	}
	return []byte("sfx:" + prompt), nil
}

// fakePlayer records every clip. Clips finish immediately unless hold is set,
// in which case they play until stopped or finished by the test.
type fakePlayer struct {
	mu      sync.Mutex
	hold    bool
	clips   []*fakeClip
	started chan string
	loadErr error
}

func newFakePlayer(hold bool) *fakePlayer {
	return &fakePlayer{hold: hold, started: make(chan string, 16)}
}

func (p *fakePlayer) Load(data []byte) (Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	c := &fakeClip{name: string(data), player: p, stopCh: make(chan struct{}), finish: make(chan struct{})}
	if !p.hold {
		close(c.finish)
	}
	p.clips = append(p.clips, c)
	return c, nil
}

func (p *fakePlayer) clip(name string) *fakeClip {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clips {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (p *fakePlayer) startedNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for _, c := range p.clips {
		if c.wasStarted() {
			names = append(names, c.name)
		}
	}
	return names
}

type fakeClip struct {
	name   string
	player *fakePlayer

	mu       sync.Mutex
	started  bool
	stopped  bool
	released int
	stopCh   chan struct{}
	finish   chan struct{}
}

func (c *fakeClip) Play(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()
	c.player.started <- c.name

	select {
	case <-c.finish:
		return nil
	case <-c.stopCh:
		return nil
	case <-ctx.Done():
		return errors.New("cancelled")
	}
}

func (c *fakeClip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.stopCh)
	}
}

func (c *fakeClip) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

func (c *fakeClip) wasStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *fakeClip) wasStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *fakeClip) releaseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

type outcomeRecorder struct {
	ch chan string
}

func newOutcomeRecorder() *outcomeRecorder {
	return &outcomeRecorder{ch: make(chan string, 16)}
}

func (r *outcomeRecorder) PlaybackFinished(outcome string) {
	r.ch <- outcome
}

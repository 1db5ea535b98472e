package playback

import (
	"errors"
	"testing"
	"time"

	"talking-pet/companion/pkg/clock"
	"talking-pet/companion/pkg/logger"
	"talking-pet/companion/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestSequencer(hold bool) (*Sequencer, *fakeSynth, *fakePlayer, *outcomeRecorder) {
	synth := newFakeSynth()
	player := newFakePlayer(hold)
	rec := newOutcomeRecorder()
	return NewSequencer(synth, player, logger.Discard(), WithRecorder(rec)), synth, player, rec
}

func awaitString(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
		return ""
	}
}

func TestPlaySpeechThenEffect(t *testing.T) {
	seq, synth, player, rec := newTestSequencer(false)
	defer seq.Close()

	seq.Play("hello", "  meow  ")
	assert.Equal(t, OutcomeCompleted, awaitString(t, rec.ch))
	seq.Wait()

	synth.AssertCalled(t, "SynthesizeSoundEffect", "meow")
	synth.AssertNumberOfCalls(t, "SynthesizeSoundEffect", 1)
	assert.Equal(t, []string{"hello", "sfx:meow"}, player.startedNames())
}

func TestPlayWithoutEffectSkipsEffectFetch(t *testing.T) {
	seq, synth, player, rec := newTestSequencer(false)
	defer seq.Close()

	seq.Play("hello", "   ")
	assert.Equal(t, OutcomeCompleted, awaitString(t, rec.ch))

	synth.AssertNotCalled(t, "SynthesizeSoundEffect", mock.Anything)
	assert.Equal(t, []string{"hello"}, player.startedNames())
}

func TestBlankTextIsIgnored(t *testing.T) {
	seq, synth, _, _ := newTestSequencer(false)
	defer seq.Close()

	seq.Play("  \n", "meow")
	seq.Wait()

	assert.Equal(t, uint64(0), seq.Generation())
	synth.AssertNotCalled(t, "SynthesizeSpeech", mock.Anything)
}

func TestNewerPlayWinsOverSlowerOlderFetch(t *testing.T) {
	seq, synth, player, rec := newTestSequencer(true)
	defer seq.Close()

	gateA := synth.gate("A")
	gateB := synth.gate("B")

	seq.Play("A", "")
	seq.Play("B", "")

	close(gateB)
	assert.Equal(t, "B", awaitString(t, player.started))

	// A's fetch resolves after B is already playing
	close(gateA)
	assert.Equal(t, OutcomeSuperseded, awaitString(t, rec.ch))

	b := player.clip("B")
	require.NotNil(t, b)
	assert.False(t, b.wasStopped(), "stale sequence must not interrupt newer audio")
	assert.Nil(t, player.clip("A"), "stale sequence never loads a clip")

	close(b.finish)
	assert.Equal(t, OutcomeCompleted, awaitString(t, rec.ch))
	seq.Wait()
	assert.Equal(t, []string{"B"}, player.startedNames())
}

func TestNewerPlayStopsCurrentAndSkipsItsEffect(t *testing.T) {
	seq, _, player, rec := newTestSequencer(true)
	defer seq.Close()

	seq.Play("A", "boom")
	assert.Equal(t, "A", awaitString(t, player.started))

	seq.Play("B", "")
	assert.Equal(t, "B", awaitString(t, player.started))

	a := player.clip("A")
	require.NotNil(t, a)
	assert.True(t, a.wasStopped())
	assert.Equal(t, 1, a.releaseCount())

	// A resumes after its clip is stopped and finds itself stale
	assert.Equal(t, OutcomeSuperseded, awaitString(t, rec.ch))
	assert.Nil(t, player.clip("sfx:boom"))

	close(player.clip("B").finish)
	assert.Equal(t, OutcomeCompleted, awaitString(t, rec.ch))
}

func TestFetchFailureIsSwallowed(t *testing.T) {
	seq, synth, player, rec := newTestSequencer(false)
	defer seq.Close()
	synth.failWith("SynthesizeSpeech", "A", errors.New("tts down"))

	seq.Play("A", "")
	assert.Equal(t, OutcomeFailed, awaitString(t, rec.ch))
	assert.Empty(t, player.startedNames())
}

func TestEffectFailureAbortsWholeSequence(t *testing.T) {
	seq, synth, player, rec := newTestSequencer(false)
	defer seq.Close()
	synth.failWith("SynthesizeSoundEffect", "boom", errors.New("sfx down"))

	seq.Play("A", "boom")
	assert.Equal(t, OutcomeFailed, awaitString(t, rec.ch))
	assert.Empty(t, player.startedNames())
}

func TestLoadFailureIsSwallowed(t *testing.T) {
	seq, _, player, rec := newTestSequencer(false)
	defer seq.Close()
	player.loadErr = errors.New("no device")

	seq.Play("A", "")
	assert.Equal(t, OutcomeFailed, awaitString(t, rec.ch))
}

func TestCloseReleasesClipsExactlyOnce(t *testing.T) {
	seq, _, player, rec := newTestSequencer(true)

	seq.Play("A", "")
	assert.Equal(t, "A", awaitString(t, player.started))

	seq.Close()
	a := player.clip("A")
	assert.True(t, a.wasStopped())
	assert.Equal(t, 1, a.releaseCount())
	assert.Equal(t, OutcomeCompleted, awaitString(t, rec.ch))

	seq.Play("B", "")
	seq.Wait()
	assert.Nil(t, player.clip("B"))
}

func TestFinishedClipsAreReleasedByNextPlay(t *testing.T) {
	seq, _, player, rec := newTestSequencer(false)
	defer seq.Close()

	seq.Play("A", "boom")
	assert.Equal(t, OutcomeCompleted, awaitString(t, rec.ch))
	assert.Equal(t, 0, player.clip("A").releaseCount())

	seq.Play("B", "")
	assert.Equal(t, OutcomeCompleted, awaitString(t, rec.ch))
	assert.Equal(t, 1, player.clip("A").releaseCount())
	assert.Equal(t, 1, player.clip("sfx:boom").releaseCount())
}

func TestGuardShortCircuitsFailingSynthesis(t *testing.T) {
	synth := newFakeSynth()
	synth.failWith("SynthesizeSpeech", "A", errors.New("tts down"))
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "speech",
		FailureThreshold: 1,
		Cooldown:         time.Minute,
	}, clock.NewMock(time.Unix(0, 0)), logger.Discard())
	guarded := Guard(synth, breaker)

	_, err := guarded.SynthesizeSpeech(t.Context(), "A")
	assert.EqualError(t, err, "tts down")

	_, err = guarded.SynthesizeSoundEffect(t.Context(), "boom")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	synth.AssertNumberOfCalls(t, "SynthesizeSpeech", 1)
	synth.AssertNotCalled(t, "SynthesizeSoundEffect", mock.Anything)
}

func TestCancelledSiblingFetchIsNotABreakerFailure(t *testing.T) {
	synth := newFakeSynth()
	synth.gate("A")
	synth.failWith("SynthesizeSoundEffect", "boom", errors.New("sfx down"))
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "speech",
		FailureThreshold: 2,
		Cooldown:         time.Minute,
	}, clock.NewMock(time.Unix(0, 0)), logger.Discard())
	rec := newOutcomeRecorder()
	seq := NewSequencer(Guard(synth, breaker), newFakePlayer(false), logger.Discard(), WithRecorder(rec))
	defer seq.Close()

	seq.Play("A", "boom")
	assert.Equal(t, OutcomeFailed, awaitString(t, rec.ch))
	seq.Wait()

	synth.AssertCalled(t, "SynthesizeSpeech", "A")
	assert.Equal(t, resilience.StateClosed, breaker.State())
	assert.Equal(t, uint64(1), breaker.Metrics()["total_failures"])
}

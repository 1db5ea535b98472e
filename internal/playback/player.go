package playback

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"talking-pet/companion/pkg/logger"
)

// Player binds audio payloads to the output device
type Player interface {
	Load(data []byte) (Clip, error)
}

// Clip is one playable payload and the resource backing it.
//
// Play blocks until the clip ends, fails, is stopped, or ctx is done; an error
// is informational only. Play on a stopped clip returns at once. Release frees
// the backing resource and is safe to call more than once.
type Clip interface {
	Play(ctx context.Context) error
	Stop()
	Release()
}

// CommandPlayer plays each clip by running an external program (for example
// "ffplay -nodisp -autoexit") with the clip's temp file appended as the last argument.
type CommandPlayer struct {
	command []string
	tempDir string
	log     *logger.Logger
}

// NewCommandPlayer creates a player around an external audio program
func NewCommandPlayer(command []string, tempDir string, log *logger.Logger) (*CommandPlayer, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("audio player command is empty")
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("audio player %q not found: %w", command[0], err)
	}
	return &CommandPlayer{command: command, tempDir: tempDir, log: log.Named("player")}, nil
}

// Load writes data to a temp file owned by the returned clip
func (p *CommandPlayer) Load(data []byte) (Clip, error) {
	f, err := os.CreateTemp(p.tempDir, "pet-clip-*")
	if err != nil {
		return nil, fmt.Errorf("create clip file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close clip file: %w", err)
	}
	return &commandClip{path: f.Name(), command: p.command, log: p.log}, nil
}

type commandClip struct {
	path    string
	command []string
	log     *logger.Logger

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc

	release sync.Once
}

func (c *commandClip) Play(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	args := append(append([]string(nil), c.command[1:]...), c.path)
	cmd := exec.CommandContext(ctx, c.command[0], args...)
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("audio player: %w", err)
	}
	return nil
}

func (c *commandClip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *commandClip) Release() {
	c.release.Do(func() {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			c.log.LogWarn(err, "Failed to remove clip file", "path", c.path)
		}
	})
}

// NullPlayer accepts clips and completes them immediately. It is used when no
// audio program is configured so the rest of the pipeline still runs.
type NullPlayer struct {
	log *logger.Logger
}

// NewNullPlayer creates a player without an output device
func NewNullPlayer(log *logger.Logger) *NullPlayer {
	return &NullPlayer{log: log.Named("player")}
}

// Load returns a clip that finishes as soon as it is played
func (p *NullPlayer) Load(data []byte) (Clip, error) {
	return &nullClip{size: len(data), log: p.log}, nil
}

type nullClip struct {
	size int
	log  *logger.Logger
}

func (c *nullClip) Play(context.Context) error {
	c.log.Debug("Skipping clip playback, no audio player configured", "bytes", c.size)
	return nil
}

func (c *nullClip) Stop()    {}
func (c *nullClip) Release() {}

// Package reminder decides when the pet proactively reaches out.
package reminder

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"talking-pet/companion/pkg/clock"
	"talking-pet/companion/pkg/logger"
)

// Cycle is one scheduler tick. It decides for itself whether to fire.
type Cycle func(ctx context.Context)

// Scheduler runs Cycle repeatedly, waiting a random interval in
// [MinInterval, MaxInterval] before each run. The next wait is only scheduled
// after the current cycle returns, so cycles never overlap.
type Scheduler struct {
	clock       clock.Clock
	minInterval time.Duration
	maxInterval time.Duration
	cycle       Cycle
	log         *logger.Logger
	jitter      func(n int64) int64

	mu      sync.Mutex
	running bool
	gen     uint64
	timer   clock.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	cycles  sync.WaitGroup
}

// NewScheduler creates a stopped scheduler
func NewScheduler(c clock.Clock, minInterval, maxInterval time.Duration, cycle Cycle, log *logger.Logger) *Scheduler {
	if maxInterval < minInterval {
		maxInterval = minInterval
	}
	return &Scheduler{
		clock:       c,
		minInterval: minInterval,
		maxInterval: maxInterval,
		cycle:       cycle,
		log:         log.Named("reminder"),
		jitter:      rand.Int64N,
	}
}

// Start begins the loop. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.gen++
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.scheduleLocked(s.gen)
	s.log.Info("Reminder loop started")
}

// Stop halts the loop. The pending wait is cancelled and a cycle that is
// currently running will not reschedule.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.cancel()
	s.log.Info("Reminder loop stopped")
}

// Wait blocks until a cycle that is currently running has returned. Call it
// after Stop to be sure no cycle is still touching shared state.
func (s *Scheduler) Wait() {
	s.cycles.Wait()
}

// Running reports whether the loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextDelay draws the wait before the next cycle
func (s *Scheduler) NextDelay() time.Duration {
	span := int64(s.maxInterval - s.minInterval)
	if span <= 0 {
		return s.minInterval
	}
	return s.minInterval + time.Duration(s.jitter(span+1))
}

func (s *Scheduler) scheduleLocked(gen uint64) {
	delay := s.NextDelay()
	s.timer = s.clock.AfterFunc(delay, func() { s.tick(gen) })
	s.log.Debug("Next reminder check scheduled", "delay", delay.String())
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	ctx := s.ctx
	s.cycles.Add(1)
	s.mu.Unlock()

	s.cycle(ctx)
	s.cycles.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && gen == s.gen {
		s.scheduleLocked(gen)
	}
}

// Package autosave coalesces bursts of edits into a single save that runs a fixed delay
// after the last edit.
//
// The pending write moves Clean -> Dirty -> Saving -> Clean. A flush that fires while a
// save is still running is dropped, not queued: the newer value stays Dirty until the
// next edit re-arms the timer or Flush is called.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bouncer/internal/clock"
)

// State of the pending write.
type State string

const (
	Clean  State = "clean"
	Dirty  State = "dirty"
	Saving State = "saving"
)

// DefaultDelay is the quiet period after the last edit before a save runs.
const DefaultDelay = time.Second

// Status is a snapshot of a Saver.
type Status struct {
	State     State
	LastError error
	SavedAt   *time.Time
}

// SaveFunc persists one value.
type SaveFunc[T any] func(ctx context.Context, v T) error

// Saver debounces edits of a single value.
type Saver[T any] struct {
	mu      sync.Mutex
	clock   clock.Clock
	delay   time.Duration
	timeout time.Duration
	save    SaveFunc[T]
	logger  *slog.Logger

	state   State
	pending T
	dirty   bool
	timer   clock.Timer
	lastErr error
	savedAt *time.Time
}

// New returns a Saver that calls save at most once per delay of inactivity.
// Each save gets its own context bounded by timeout.
func New[T any](c clock.Clock, delay, timeout time.Duration, save SaveFunc[T], logger *slog.Logger) *Saver[T] {
	return &Saver[T]{
		clock:   c,
		delay:   delay,
		timeout: timeout,
		save:    save,
		logger:  logger,
		state:   Clean,
	}
}

// Edit records v as the latest value and re-arms the timer.
func (s *Saver[T]) Edit(v T) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = v
	s.dirty = true
	if s.state != Saving {
		s.state = Dirty
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, s.flush)
	return s.statusLocked()
}

// Flush saves the pending value now unless a save is already running.
func (s *Saver[T]) Flush() Status {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.flush()
	return s.Status()
}

func (s *Saver[T]) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Saver[T]) statusLocked() Status {
	return Status{State: s.state, LastError: s.lastErr, SavedAt: s.savedAt}
}

func (s *Saver[T]) flush() {
	s.mu.Lock()
	if s.state == Saving {
		s.mu.Unlock()
		s.logger.Debug("autosave flush dropped, save in flight")
		return
	}
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	v := s.pending
	s.dirty = false
	s.state = Saving
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	err := s.save(ctx, v)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	switch {
	case err != nil:
		s.logger.Warn("autosave failed", "err", err)
		s.dirty = true
		s.state = Dirty
	case s.dirty:
		s.state = Dirty
	default:
		now := s.clock.Now()
		s.savedAt = &now
		s.state = Clean
	}
}

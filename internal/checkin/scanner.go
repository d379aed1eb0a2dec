// Package checkin verifies scanned QR payloads against an event's guest list.
//
// A Scanner moves Idle -> Scanning -> Decoded -> Verified|NotFound and returns to Idle
// after the display window. Verification is a read-only membership check against a
// guest-id set fetched once when the scanner is created.
package checkin

import (
	"errors"
	"strings"
	"sync"
	"time"

	"bouncer/internal/clock"
)

// State of the scanner.
type State string

const (
	Idle     State = "idle"
	Scanning State = "scanning"
	Decoded  State = "decoded"
	Verified State = "verified"
	NotFound State = "not_found"
)

// DisplayWindow is how long a result stays on screen before the scanner resets.
const DisplayWindow = 3 * time.Second

var (
	// ErrBusy is returned when a scan arrives while a result is still displayed.
	ErrBusy = errors.New("checkin: result still displayed")
	// ErrNotScanning is returned when a scan arrives before Start.
	ErrNotScanning = errors.New("checkin: camera is not scanning")
)

// Result is the outcome of one scan.
type Result struct {
	Payload string
	State   State
	At      time.Time
}

// Scanner is safe for concurrent use.
type Scanner struct {
	mu       sync.Mutex
	clock    clock.Clock
	window   time.Duration
	guests   map[string]struct{}
	state    State
	last     *Result
	reset    clock.Timer
	gen      uint64 // bumped per result; a timer only resets the result it was armed for
	onChange func(State)
}

// NewScanner returns an Idle scanner for the given guest user ids.
// onChange, if not nil, is called after every transition while no lock is held.
func NewScanner(c clock.Clock, guestIDs []string, window time.Duration, onChange func(State)) *Scanner {
	guests := make(map[string]struct{}, len(guestIDs))
	for _, id := range guestIDs {
		guests[id] = struct{}{}
	}
	return &Scanner{
		clock:    c,
		window:   window,
		guests:   guests,
		state:    Idle,
		onChange: onChange,
	}
}

func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Last returns the most recent result, or nil.
func (s *Scanner) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Start turns the camera on. It is a no-op unless the scanner is Idle.
func (s *Scanner) Start() State {
	s.mu.Lock()
	changed := s.state == Idle
	if changed {
		s.state = Scanning
	}
	st := s.state
	s.mu.Unlock()
	if changed {
		s.notify(st)
	}
	return st
}

// Scan handles one decoded payload. It returns ErrNotScanning unless Start was called, and
// ErrBusy while another scan or a displayed result holds the scanner.
func (s *Scanner) Scan(payload string) (*Result, error) {
	s.mu.Lock()
	switch s.state {
	case Scanning:
	case Idle:
		s.mu.Unlock()
		return nil, ErrNotScanning
	default:
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.state = Decoded
	s.mu.Unlock()
	s.notify(Decoded)

	payload = strings.TrimSpace(payload)
	outcome := NotFound
	if _, ok := s.guests[payload]; ok && payload != "" {
		outcome = Verified
	}

	s.mu.Lock()
	s.state = outcome
	s.last = &Result{Payload: payload, State: outcome, At: s.clock.Now()}
	if s.reset != nil {
		s.reset.Stop()
	}
	s.gen++
	gen := s.gen
	s.reset = s.clock.AfterFunc(s.window, func() { s.expire(gen) })
	r := *s.last
	s.mu.Unlock()
	s.notify(outcome)
	return &r, nil
}

// Reset returns the scanner to Idle and cancels any pending display timer.
func (s *Scanner) Reset() {
	s.mu.Lock()
	s.resetLocked()
}

// expire ends the display window of result gen. A timer that fired late, after its result was
// already replaced, does nothing.
func (s *Scanner) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
}

// resetLocked must be called with s.mu held and releases it.
func (s *Scanner) resetLocked() {
	if s.reset != nil {
		s.reset.Stop()
		s.reset = nil
	}
	changed := s.state != Idle
	s.state = Idle
	s.mu.Unlock()
	if changed {
		s.notify(Idle)
	}
}

func (s *Scanner) notify(st State) {
	if s.onChange != nil {
		s.onChange(st)
	}
}

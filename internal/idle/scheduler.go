// Package idle drives the cosmetic cursor animation played after a period of
// user inactivity.
package idle

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultTimeout      = 120 * time.Second
	DefaultPollInterval = time.Second
	// ClearBuffer is added to an animation's duration before it is cleared.
	ClearBuffer = 100 * time.Millisecond
)

var ErrEmptyPalette = errors.New("idle: animation palette is empty")

// Animation is one palette entry.
type Animation struct {
	Name     string
	Duration time.Duration
}

// Token renders the animation as a CSS animation shorthand, e.g.
// "idleSpin 0.8s ease-in-out".
func (a Animation) Token() string {
	return a.Name + " " + strconv.FormatFloat(a.Duration.Seconds(), 'f', -1, 64) + "s ease-in-out"
}

// DefaultPalette returns the built-in animations.
func DefaultPalette() []Animation {
	return []Animation{
		{Name: "idleLand", Duration: 1500 * time.Millisecond},
		{Name: "idleBackflip", Duration: 800 * time.Millisecond},
		{Name: "idleSpin", Duration: 800 * time.Millisecond},
		{Name: "idleShake", Duration: 600 * time.Millisecond},
		{Name: "idleGrow", Duration: 1200 * time.Millisecond},
	}
}

// Clock abstracts time for the scheduler.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type Option func(*Scheduler)

func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.poll = d
		}
	}
}

func WithPalette(p []Animation) Option {
	return func(s *Scheduler) { s.palette = append([]Animation(nil), p...) }
}

// WithRand sets the index source; intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option { return func(s *Scheduler) { s.intn = intn } }

// Scheduler is a two-state machine. While watching, Tick starts a random
// animation once the inactivity timeout has elapsed. While animating, a clear
// timer returns it to watching after the animation's duration plus
// ClearBuffer, and the inactivity countdown restarts from that moment. Reset
// returns it to watching immediately.
//
// Clear timers carry the generation they were armed in; a timer that fires
// after Reset (or after a newer animation started) is ignored.
type Scheduler struct {
	clock   Clock
	timeout time.Duration
	poll    time.Duration
	palette []Animation
	intn    func(n int) int

	mu         sync.Mutex
	last       time.Time
	current    int
	previous   int
	gen        uint64
	clearTimer Timer
	listeners  []func(Animation, bool)
}

func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		clock:    systemClock{},
		timeout:  DefaultTimeout,
		poll:     DefaultPollInterval,
		palette:  DefaultPalette(),
		intn:     rand.IntN,
		current:  -1,
		previous: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.palette) == 0 {
		return nil, fmt.Errorf("idle.New: %w", ErrEmptyPalette)
	}
	s.last = s.clock.Now()
	return s, nil
}

// OnChange registers fn to be called whenever an animation starts (active is
// true) or stops. fn runs without the scheduler lock held.
func (s *Scheduler) OnChange(fn func(a Animation, active bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Current returns the running animation, if any.
func (s *Scheduler) Current() (Animation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current < 0 {
		return Animation{}, false
	}
	return s.palette[s.current], true
}

// Reset records an interaction: the countdown restarts, any pending clear is
// cancelled and a running animation stops.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.last = s.clock.Now()
	s.gen++
	if s.clearTimer != nil {
		s.clearTimer.Stop()
		s.clearTimer = nil
	}
	stopped := s.current
	s.current = -1
	listeners := s.listeners
	s.mu.Unlock()

	if stopped >= 0 {
		notify(listeners, s.palette[stopped], false)
	}
}

// Tick performs one poll step and reports whether an animation started.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	if s.current >= 0 || s.clock.Now().Sub(s.last) < s.timeout {
		s.mu.Unlock()
		return false
	}

	idx := s.pick()
	s.current = idx
	s.previous = idx
	s.gen++
	gen := s.gen
	a := s.palette[idx]
	s.clearTimer = s.clock.AfterFunc(a.Duration+ClearBuffer, func() { s.finish(gen) })
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, a, true)
	return true
}

// Run polls until ctx is cancelled, then stops any pending clear timer.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Tick()
		case <-ctx.Done():
			s.mu.Lock()
			s.gen++
			if s.clearTimer != nil {
				s.clearTimer.Stop()
				s.clearTimer = nil
			}
			s.mu.Unlock()
			return
		}
	}
}

func (s *Scheduler) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.current < 0 {
		s.mu.Unlock()
		return
	}
	a := s.palette[s.current]
	s.current = -1
	s.clearTimer = nil
	s.last = s.clock.Now()
	listeners := s.listeners
	s.mu.Unlock()

	notify(listeners, a, false)
}

// pick chooses a palette index different from the previous one when the
// palette allows it. Callers hold s.mu.
func (s *Scheduler) pick() int {
	n := len(s.palette)
	if n == 1 {
		return 0
	}
	if s.previous < 0 {
		return s.intn(n)
	}
	idx := s.intn(n - 1)
	if idx >= s.previous {
		idx++
	}
	return idx
}

func notify(listeners []func(Animation, bool), a Animation, active bool) {
	for _, fn := range listeners {
		fn(a, active)
	}
}

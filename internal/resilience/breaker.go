// Package resilience provides fault tolerance patterns
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// State represents circuit breaker state
type State uint32

const (
	Closed   State = iota // Normal operation
	Open                  // Failing fast
	HalfOpen              // Testing recovery
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow while the breaker is failing fast.
var ErrOpen = errors.New("circuit breaker open")

// Breaker counts consecutive failures of one remote dependency and fails fast
// once Threshold is reached, probing again after ResetTimeout.
type Breaker struct {
	cfg  Config
	name string
	now  func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	hook        func(from, to State)
}

// New creates a breaker with config
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now}
}

// Named labels the breaker in logs.
func (b *Breaker) Named(name string) *Breaker {
	b.name = name
	return b
}

// WithHook sets a callback run on every state change, outside the lock.
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.mu.Lock()
	b.hook = fn
	b.mu.Unlock()
	return b
}

// WithClock replaces the time source. For tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow returns nil if a call may proceed. An open breaker whose reset
// timeout has passed moves to half-open and lets the call through.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	if b.state != Open {
		b.mu.Unlock()
		return nil
	}
	if b.now().Sub(b.lastFailure) <= b.cfg.ResetTimeout {
		b.mu.Unlock()
		return ErrOpen
	}
	notify := b.moveLocked(HalfOpen)
	b.mu.Unlock()
	notify()
	return nil
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	notify := func() {}
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			notify = b.moveLocked(Closed)
		}
	case Closed:
		b.failures = 0
	}
	b.mu.Unlock()
	notify()
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	b.lastFailure = b.now()
	b.failures++
	notify := func() {}
	switch {
	case b.state == HalfOpen:
		notify = b.moveLocked(Open)
	case b.state == Closed && b.failures >= b.cfg.Threshold:
		notify = b.moveLocked(Open)
	}
	b.mu.Unlock()
	notify()
}

// State returns current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	notify := b.moveLocked(Closed)
	b.mu.Unlock()
	notify()
}

// moveLocked switches state and returns the hook invocation to run once the
// lock is released.
func (b *Breaker) moveLocked(to State) func() {
	from := b.state
	if from == to {
		return func() {}
	}
	b.state = to
	b.successes = 0

	switch to {
	case Closed:
		b.failures = 0
		slog.Info("circuit breaker closed", "breaker", b.name)
	case Open:
		slog.Warn("circuit breaker opened", "breaker", b.name, "failures", b.failures)
	case HalfOpen:
		slog.Info("circuit breaker half-open", "breaker", b.name)
	}

	hook := b.hook
	if hook == nil {
		return func() {}
	}
	return func() { hook(from, to) }
}

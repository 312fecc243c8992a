// Package circuit stops calling a failing model provider until it has had time to recover.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// State is the breaker position.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
)

// Config mirrors ai.circuit. Zero thresholds take the defaults (5 failures, 2 successes).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// Error is returned while the breaker rejects calls.
type Error struct {
	State   State
	RetryIn time.Duration
}

func (e *Error) Error() string {
	if e.RetryIn > 0 {
		return fmt.Sprintf("model circuit %s, retry in %s", e.State, e.RetryIn.Round(time.Second))
	}
	return fmt.Sprintf("model circuit %s", e.State)
}

// Breaker counts consecutive failures. It opens at FailureThreshold, lets trial calls through
// after Timeout and closes again after SuccessThreshold trial successes.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New creates a breaker on the wall clock.
func New(cfg Config) *Breaker {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a breaker reading time from now.
func NewWithClock(cfg Config, now func() time.Time) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaultSuccessThreshold
	}
	return &Breaker{cfg: cfg, now: now, state: Closed}
}

// Admit returns nil when a call may proceed, moving an expired open breaker to half-open.
func (b *Breaker) Admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return nil
	}
	waited := b.now().Sub(b.openedAt)
	if waited < b.cfg.Timeout {
		return &Error{State: Open, RetryIn: b.cfg.Timeout - waited}
	}
	b.state = HalfOpen
	b.successes = 0
	return nil
}

// Record stores the outcome of an admitted call.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.failures = 0
		if b.state == HalfOpen {
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.state = Closed
				b.successes = 0
			}
		}
		return
	}

	b.failures++
	// A failed trial call reopens immediately.
	if b.state == HalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = Open
		b.openedAt = b.now()
		b.successes = 0
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

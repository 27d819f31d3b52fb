package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the wrapped call while the
// breaker is rejecting traffic.
var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // rejecting all calls
	StateHalfOpen              // probing with a bounded number of calls
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

type Config struct {
	// Consecutive failures that trip the breaker open.
	FailureThreshold int
	// Successes in half-open that close it again.
	SuccessThreshold int
	// How long the breaker stays open before probing.
	OpenTimeout time.Duration
	// Calls allowed through while half-open.
	HalfOpenMaxCalls int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// Breaker guards an unreliable downstream. All state lives behind one
// mutex; the wrapped call runs outside it.
type Breaker struct {
	cfg Config

	mu            sync.RWMutex
	state         State
	failureCount  int
	successCount  int
	halfOpenCalls int
	lastStateTime time.Time
}

func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:           cfg,
		state:         StateClosed,
		lastStateTime: time.Now(),
	}
}

// Execute runs fn under breaker protection. While open it fails fast
// with ErrOpen. The fn error is returned unchanged so callers can map it
// to their own outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	b.transition()

	switch b.state {
	case StateOpen:
		b.mu.Unlock()
		return ErrOpen
	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			b.mu.Unlock()
			return ErrOpen
		}
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	return err
}

// transition applies time- and counter-driven state changes. Caller
// holds the lock.
func (b *Breaker) transition() {
	now := time.Now()
	switch b.state {
	case StateOpen:
		if now.Sub(b.lastStateTime) >= b.cfg.OpenTimeout {
			b.state = StateHalfOpen
			b.halfOpenCalls = 0
			b.successCount = 0
			b.lastStateTime = now
		}
	case StateHalfOpen:
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.lastStateTime = now
		}
	case StateClosed:
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.lastStateTime = now
		}
	}
}

func (b *Breaker) onFailure() {
	b.failureCount++
	if b.state == StateHalfOpen {
		// A half-open probe failing reopens immediately.
		b.state = StateOpen
		b.halfOpenCalls = 0
		b.lastStateTime = time.Now()
	}
}

func (b *Breaker) onSuccess() {
	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.successCount++
		if b.halfOpenCalls > 0 {
			b.halfOpenCalls--
		}
	}
}

func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenCalls = 0
	b.lastStateTime = time.Now()
}

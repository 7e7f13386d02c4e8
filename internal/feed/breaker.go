package feed

import (
	"log/slog"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, reject attempts
	StateHalfOpen              // Testing recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds configuration for creating a circuit breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold int           // failures before opening
	SuccessThreshold int           // successes before closing from half-open
	Timeout          time.Duration // open time before a half-open probe
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	}
}

// Breaker stops a feed from hammering an endpoint that keeps failing.
// It is safe for concurrent use.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow reports whether an attempt may proceed. An open breaker turns half-open once
// its timeout has passed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Timeout {
			return false
		}
		b.state = StateHalfOpen
		b.successCount = 0
		slog.Info("Circuit breaker transitioning to HALF_OPEN", slog.String("name", b.cfg.Name))
		return true
	default:
		return true
	}
}

// Wait returns how long an open breaker stays closed to attempts.
func (b *Breaker) Wait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return 0
	}
	if d := b.cfg.Timeout - b.now().Sub(b.openedAt); d > 0 {
		return d
	}
	return 0
}

// RecordSuccess records a successful attempt.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			slog.Info("Circuit breaker CLOSED (recovered)", slog.String("name", b.cfg.Name))
		}
	}
}

// RecordFailure records a failed attempt.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.open()
			slog.Warn("Circuit breaker OPEN (failures exceeded threshold)",
				slog.String("name", b.cfg.Name),
				slog.Int("failures", b.failureCount))
		}
	case StateHalfOpen:
		b.open()
		slog.Warn("Circuit breaker OPEN (half-open probe failed)", slog.String("name", b.cfg.Name))
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.successCount = 0
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

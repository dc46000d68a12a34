package resilience

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/types"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed passes calls through normally.
	StateClosed State = iota
	// StateOpen rejects calls without invoking the dependency.
	StateOpen
	// StateHalfOpen lets trial calls through after the recovery timeout.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected by an open breaker.
var ErrCircuitOpen = types.NewError(types.ErrCircuitOpen, "circuit breaker is open")

// BreakerConfig configures one circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold int

	// RecoveryTimeout is how long after the last failure the breaker
	// lets a trial call through (open -> half-open).
	RecoveryTimeout time.Duration

	// HalfOpenSuccessThreshold is the consecutive trial successes
	// required to close the breaker again.
	HalfOpenSuccessThreshold int

	// OnStateChange is invoked (in its own goroutine) on transitions.
	OnStateChange func(dependency string, from, to State)

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// DefaultBreakerConfig returns the documented defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:         5,
		RecoveryTimeout:          60 * time.Second,
		HalfOpenSuccessThreshold: 2,
	}
}

func (c *BreakerConfig) normalize() {
	def := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
	if c.HalfOpenSuccessThreshold <= 0 {
		c.HalfOpenSuccessThreshold = def.HalfOpenSuccessThreshold
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Breaker is the circuit breaker for one dependency.
//
// State changes only through the defined transitions: closed opens at
// FailureThreshold consecutive failures; open goes half-open once
// RecoveryTimeout has elapsed since the last failure; half-open closes
// after HalfOpenSuccessThreshold consecutive successes and reopens on
// any failure.
type Breaker struct {
	dependency string
	config     BreakerConfig
	logger     *zap.Logger

	mu          sync.Mutex
	state       State
	failures    int
	successes   int // trial successes, meaningful only in half-open
	lastFailure time.Time
}

// NewBreaker creates a breaker for the named dependency.
func NewBreaker(dependency string, config BreakerConfig, logger *zap.Logger) *Breaker {
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		dependency: dependency,
		config:     config,
		logger:     logger.With(zap.String("component", "circuit_breaker"), zap.String("dependency", dependency)),
		state:      StateClosed,
	}
}

// Allow reports whether a call may proceed. While open and before the
// recovery timeout it returns ErrCircuitOpen without invoking anything;
// once the timeout has elapsed the breaker transitions to half-open and
// the call is let through as a trial.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		if b.config.Now().Sub(b.lastFailure) >= b.config.RecoveryTimeout {
			b.setState(StateHalfOpen)
			b.successes = 0
			b.logger.Info("circuit breaker half-open, allowing trial call")
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess feeds a successful call into the state machine.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.HalfOpenSuccessThreshold {
			b.setState(StateClosed)
			b.failures = 0
			b.successes = 0
			b.logger.Info("circuit breaker closed after successful trials")
		}
	}
}

// RecordFailure feeds a failed call into the state machine.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.config.Now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.setState(StateOpen)
			b.logger.Warn("circuit breaker opened",
				zap.Int("failures", b.failures),
				zap.Int("threshold", b.config.FailureThreshold))
		}
	case StateHalfOpen:
		// A failed trial reopens immediately.
		b.setState(StateOpen)
		b.failures = b.config.FailureThreshold
		b.successes = 0
		b.logger.Warn("circuit breaker reopened after failed trial")
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed (manual recovery).
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) setState(next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.dependency, prev, next)
	}
}

// BreakerRegistry holds one breaker per dependency name. Multiple
// sessions share these breakers, so all access is synchronized.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	config   BreakerConfig
	logger   *zap.Logger
}

// NewBreakerRegistry creates a registry applying config to every
// breaker it creates.
func NewBreakerRegistry(config BreakerConfig, logger *zap.Logger) *BreakerRegistry {
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerRegistry{
		breakers: make(map[string]*Breaker),
		config:   config,
		logger:   logger,
	}
}

// Get returns the breaker for dependency, creating it on first use.
func (r *BreakerRegistry) Get(dependency string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[dependency]
	if !ok {
		b = NewBreaker(dependency, r.config, r.logger)
		r.breakers[dependency] = b
	}
	return b
}

// States returns a snapshot of every known breaker's state.
func (r *BreakerRegistry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}

package resilience

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/parley-ai/parley/types"
)

// ErrFallback signals that a terminal fallback strategy applied: the
// dependency stays failed, and the caller should substitute a canned or
// demo response.
var ErrFallback = errors.New("fallback response substituted")

// Strategy is one recovery strategy. Strategies are tried in descending
// priority order; the first whose Applies predicate matches the error
// record is applied.
type Strategy interface {
	Name() string
	Priority() int
	Applies(rec types.ErrorRecord) bool

	// Recover attempts recovery. attempt re-invokes the guarded
	// operation; a nil return means the operation eventually succeeded.
	Recover(ctx context.Context, rec types.ErrorRecord, attempt func(ctx context.Context) error) error
}

// RetryStrategy waits and re-invokes the operation a bounded number of
// times for a fixed set of error categories.
type RetryStrategy struct {
	StrategyName string
	Prio         int
	Delay        time.Duration
	MaxAttempts  int
	Categories   []types.ErrorCode
}

// Name implements Strategy.Name.
func (s *RetryStrategy) Name() string { return s.StrategyName }

// Priority implements Strategy.Priority.
func (s *RetryStrategy) Priority() int { return s.Prio }

// Applies implements Strategy.Applies.
func (s *RetryStrategy) Applies(rec types.ErrorRecord) bool {
	for _, c := range s.Categories {
		if rec.Category == c {
			return true
		}
	}
	return false
}

// Recover implements Strategy.Recover.
func (s *RetryStrategy) Recover(ctx context.Context, _ types.ErrorRecord, attempt func(ctx context.Context) error) error {
	var lastErr error
	for i := 0; i < s.MaxAttempts; i++ {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		// An opened breaker or a cancelled caller ends the retry loop.
		if errors.Is(lastErr, ErrCircuitOpen) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
	}
	return lastErr
}

// FallbackStrategy is the terminal strategy: always applicable, never
// re-invokes the dependency.
type FallbackStrategy struct {
	Prio int
}

// Name implements Strategy.Name.
func (s *FallbackStrategy) Name() string { return "fallback" }

// Priority implements Strategy.Priority.
func (s *FallbackStrategy) Priority() int { return s.Prio }

// Applies implements Strategy.Applies.
func (s *FallbackStrategy) Applies(types.ErrorRecord) bool { return true }

// Recover implements Strategy.Recover.
func (s *FallbackStrategy) Recover(context.Context, types.ErrorRecord, func(ctx context.Context) error) error {
	return ErrFallback
}

// DefaultStrategies returns the standard strategy list: connection
// retry (priority 10, 1s), timeout retry (9, 2s), rate-limit retry
// (8, 5s), fallback (1). maxAttempts bounds each retry strategy.
func DefaultStrategies(maxAttempts int) []Strategy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return []Strategy{
		&RetryStrategy{
			StrategyName: "connection-retry",
			Prio:         10,
			Delay:        1 * time.Second,
			MaxAttempts:  maxAttempts,
			Categories:   []types.ErrorCode{types.ErrNetwork},
		},
		&RetryStrategy{
			StrategyName: "timeout-retry",
			Prio:         9,
			Delay:        2 * time.Second,
			MaxAttempts:  maxAttempts,
			Categories:   []types.ErrorCode{types.ErrTimeout},
		},
		&RetryStrategy{
			StrategyName: "ratelimit-retry",
			Prio:         8,
			Delay:        5 * time.Second,
			MaxAttempts:  maxAttempts,
			Categories:   []types.ErrorCode{types.ErrRateLimit},
		},
		&FallbackStrategy{Prio: 1},
	}
}

// sortStrategies orders strategies by descending priority, stable.
func sortStrategies(strategies []Strategy) []Strategy {
	out := append([]Strategy(nil), strategies...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}

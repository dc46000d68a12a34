package resilience

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/types"
)

// ManagerConfig configures the resilience manager.
type ManagerConfig struct {
	Breaker BreakerConfig

	// Strategies overrides the default strategy list.
	Strategies []Strategy

	// MaxRetryAttempts bounds the default retry strategies.
	MaxRetryAttempts int

	// WarningThreshold is the consecutive-unrecovered-error count after
	// which ShouldWarn reports true.
	WarningThreshold int
}

// Manager shields external calls: it categorizes failures, accounts
// them against the dependency's circuit breaker, and applies the first
// matching recovery strategy. Every failure is recorded, recovered or
// not.
type Manager struct {
	breakers   *BreakerRegistry
	strategies []Strategy
	history    *History
	logger     *zap.Logger
}

// NewManager creates a resilience manager.
func NewManager(config ManagerConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	strategies := config.Strategies
	if strategies == nil {
		strategies = DefaultStrategies(config.MaxRetryAttempts)
	}
	return &Manager{
		breakers:   NewBreakerRegistry(config.Breaker, logger),
		strategies: sortStrategies(strategies),
		history:    NewHistory(config.WarningThreshold),
		logger:     logger.With(zap.String("component", "resilience")),
	}
}

// Breakers exposes the per-dependency breaker registry.
func (m *Manager) Breakers() *BreakerRegistry { return m.breakers }

// History exposes the error record history.
func (m *Manager) History() *History { return m.history }

// Execute runs op against the named dependency behind its circuit
// breaker and the recovery strategies.
//
// Returned errors: nil on (possibly retried) success; ErrCircuitOpen
// when the breaker rejected the call; ErrFallback when the terminal
// fallback strategy applied; otherwise the categorized failure.
// A clean caller cancellation is passed through without breaker
// accounting, since cancellation is not a failure.
func (m *Manager) Execute(ctx context.Context, dependency string, op func(ctx context.Context) error) error {
	breaker := m.breakers.Get(dependency)

	attempt := func(ctx context.Context) error {
		if err := breaker.Allow(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			breaker.RecordSuccess()
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		breaker.RecordFailure()
		return err
	}

	err := attempt(ctx)
	if err == nil {
		m.history.NoteSuccess()
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	// An open breaker short-circuits: no recovery attempt, no
	// dependency call.
	if errors.Is(err, ErrCircuitOpen) {
		m.history.Record(Categorize(err, dependency))
		return err
	}

	rec := Categorize(err, dependency)
	m.logger.Warn("external call failed",
		zap.String("dependency", dependency),
		zap.String("category", string(rec.Category)),
		zap.Error(err))

	// Auth failures are never retryable and surface immediately.
	if rec.Category == types.ErrAuth {
		m.history.Record(rec)
		return m.categorized(rec, err)
	}

	for _, s := range m.strategies {
		if !s.Applies(rec) {
			continue
		}
		rerr := s.Recover(ctx, rec, attempt)
		switch {
		case rerr == nil:
			rec.Recovered = true
			rec.Strategy = s.Name()
			m.history.Record(rec)
			m.logger.Info("recovered from failure",
				zap.String("dependency", dependency),
				zap.String("strategy", s.Name()))
			return nil
		case errors.Is(rerr, ErrFallback):
			rec.Recovered = true
			rec.Strategy = s.Name()
			m.history.Record(rec)
			return ErrFallback
		case errors.Is(rerr, context.Canceled):
			return rerr
		default:
			// Retries exhausted: surface the categorized error.
			rec.Strategy = s.Name()
			m.history.Record(rec)
			return m.categorized(rec, rerr)
		}
	}

	m.history.Record(rec)
	return m.categorized(rec, err)
}

// ShouldWarn reports whether responses should carry a degradation
// warning.
func (m *Manager) ShouldWarn() bool { return m.history.ShouldWarn() }

func (m *Manager) categorized(rec types.ErrorRecord, cause error) error {
	var structured *types.Error
	if errors.As(cause, &structured) {
		return cause
	}
	return types.NewError(rec.Category, rec.Message).
		WithCause(cause).
		WithDependency(rec.Dependency)
}

// Do runs fn through the manager and returns its value. When the
// breaker rejects the call or the fallback strategy applies, the zero
// value is returned alongside ErrCircuitOpen or ErrFallback.
func Do[T any](ctx context.Context, m *Manager, dependency string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := m.Execute(ctx, dependency, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/testutil"
	"github.com/parley-ai/parley/types"
)

func newTestBreaker(clock *testutil.Clock) *Breaker {
	return NewBreaker("llm-backend", BreakerConfig{
		FailureThreshold:         5,
		RecoveryTimeout:          60 * time.Second,
		HalfOpenSuccessThreshold: 2,
		Now:                      clock.Now,
	}, nil)
}

func TestBreaker_OpensAtFailureThreshold(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(testutil.NewClock(time.Time{}))

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State(), "still closed after %d failures", i+1)
	}
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// The next call is rejected without reaching the dependency.
	err := b.Allow()
	require.Error(t, err)
	assert.Equal(t, types.ErrCircuitOpen, types.GetErrorCode(err))
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(testutil.NewClock(time.Time{}))

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_RecoveryCycle(t *testing.T) {
	t.Parallel()
	clock := testutil.NewClock(time.Time{})
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	// Before the recovery timeout every call is rejected.
	clock.Advance(59 * time.Second)
	assert.Error(t, b.Allow())

	// After the timeout one trial call is admitted.
	clock.Advance(2 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	// Closing takes two consecutive trial successes.
	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()
	clock := testutil.NewClock(time.Time{})
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(61 * time.Second)
	require.NoError(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// The reopened breaker waits out a fresh recovery timeout.
	clock.Advance(30 * time.Second)
	assert.Error(t, b.Allow())
	clock.Advance(31 * time.Second)
	assert.NoError(t, b.Allow())
}

func TestBreaker_OnStateChange(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var transitions []string
	done := make(chan struct{}, 8)

	clock := testutil.NewClock(time.Time{})
	b := NewBreaker("llm-backend", BreakerConfig{
		FailureThreshold:         2,
		RecoveryTimeout:          time.Second,
		HalfOpenSuccessThreshold: 1,
		Now:                      clock.Now,
		OnStateChange: func(dep string, from, to State) {
			mu.Lock()
			transitions = append(transitions, from.String()+">"+to.String())
			mu.Unlock()
			done <- struct{}{}
		},
	}, nil)

	b.RecordFailure()
	b.RecordFailure()
	<-done
	clock.Advance(2 * time.Second)
	require.NoError(t, b.Allow())
	<-done
	b.RecordSuccess()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed>open", "open>half_open", "half_open>closed"}, transitions)
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()
	b := newTestBreaker(testutil.NewClock(time.Time{}))
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreakerRegistry_PerDependency(t *testing.T) {
	t.Parallel()
	reg := NewBreakerRegistry(BreakerConfig{FailureThreshold: 1}, nil)

	reg.Get("llm-backend").RecordFailure()
	assert.Equal(t, StateOpen, reg.Get("llm-backend").State())
	assert.Equal(t, StateClosed, reg.Get("embeddings").State())

	// Same instance per dependency.
	assert.Same(t, reg.Get("llm-backend"), reg.Get("llm-backend"))

	states := reg.States()
	assert.Equal(t, StateOpen, states["llm-backend"])
	assert.Equal(t, StateClosed, states["embeddings"])
}

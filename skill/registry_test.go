package skill

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/parley-ai/parley/types"
)

// --- helpers ---

func okExec(output string) Executor {
	return ExecFunc(func(_ context.Context, _ string, _ *ExecutionContext) (*types.SkillResult, error) {
		return &types.SkillResult{Success: true, Output: output}, nil
	})
}

func def(id string, keywords ...string) types.SkillDefinition {
	return types.SkillDefinition{ID: id, Name: id, Keywords: keywords, Enabled: true}
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()
	r := NewRegistry(RegistryConfig{}, nil)

	require.NoError(t, r.Register(def("search", "find"), okExec("found")))

	// Duplicate id rejected.
	assert.Error(t, r.Register(def("search"), okExec("")))
	// Missing id rejected.
	assert.Error(t, r.Register(types.SkillDefinition{}, okExec("")))
	// Missing executor rejected.
	assert.Error(t, r.Register(def("other"), nil))

	// Zero weight initializes to 1.0, out-of-range weight is clamped.
	w, err := r.Weight("search")
	require.NoError(t, err)
	assert.Equal(t, 1.0, w)

	heavy := def("heavy")
	heavy.Weight = 99
	require.NoError(t, r.Register(heavy, okExec("")))
	w, err = r.Weight("heavy")
	require.NoError(t, err)
	assert.Equal(t, types.MaxSkillWeight, w)
}

func TestRegistry_List_PreservesRegistrationOrder(t *testing.T) {
	t.Parallel()
	r := NewRegistry(RegistryConfig{}, nil)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(def(id), okExec("")))
	}

	var ids []string
	for _, d := range r.List() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRegistry_RecordExecution_WeightLearning(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		success  bool
		duration time.Duration
		wantDir  int // -1 decrease, 0 unchanged-or-up, +1 increase
	}{
		{"fast success raises weight", true, time.Second, +1},
		{"slow success pulls toward neutral", true, 10 * time.Second, 0},
		{"failure lowers weight", false, time.Second, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(RegistryConfig{LearningRate: 0.2, FastThreshold: 2 * time.Second}, nil)
			require.NoError(t, r.Register(def("s"), okExec("")))
			before, _ := r.Weight("s")

			r.RecordExecution(types.SkillExecutionRecord{
				SkillID: "s", Success: tt.success, Duration: tt.duration,
			})
			after, err := r.Weight("s")
			require.NoError(t, err)

			switch tt.wantDir {
			case +1:
				assert.Greater(t, after, before)
			case -1:
				assert.Less(t, after, before)
			default:
				assert.InDelta(t, before, after, 0.2)
			}
			assert.GreaterOrEqual(t, after, types.MinSkillWeight)
			assert.LessOrEqual(t, after, types.MaxSkillWeight)
		})
	}
}

func TestRegistry_WeightMonotonicityProperties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry(RegistryConfig{LearningRate: 0.2, FastThreshold: 2 * time.Second}, nil)
		d := def("s")
		d.Weight = rapid.Float64Range(types.MinSkillWeight, types.MaxSkillWeight).Draw(rt, "weight")
		if err := r.Register(d, okExec("")); err != nil {
			rt.Fatal(err)
		}
		before, _ := r.Weight("s")

		fast := rapid.Bool().Draw(rt, "fast_success")
		rec := types.SkillExecutionRecord{SkillID: "s", Success: fast, Duration: time.Second}
		if !fast {
			rec.Duration = 100 * time.Millisecond
		}
		r.RecordExecution(rec)
		after, _ := r.Weight("s")

		if fast && after < before {
			rt.Fatalf("fast success lowered weight: %f -> %f", before, after)
		}
		if !fast && after > before {
			rt.Fatalf("failure raised weight: %f -> %f", before, after)
		}
		if after < types.MinSkillWeight || after > types.MaxSkillWeight {
			rt.Fatalf("weight out of bounds: %f", after)
		}
	})
}

func TestRegistry_RecordExecution_UnknownSkillIsNoop(t *testing.T) {
	t.Parallel()
	r := NewRegistry(RegistryConfig{}, nil)
	// Must not panic.
	r.RecordExecution(types.SkillExecutionRecord{SkillID: "ghost", Success: true})
}

func TestRegistry_SetEnabled(t *testing.T) {
	t.Parallel()
	r := NewRegistry(RegistryConfig{}, nil)
	require.NoError(t, r.Register(def("s"), okExec("")))

	require.NoError(t, r.SetEnabled("s", false))
	d, _, err := r.Get("s")
	require.NoError(t, err)
	assert.False(t, d.Enabled)

	assert.Error(t, r.SetEnabled("ghost", true))
}

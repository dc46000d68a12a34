package skill

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/resilience"
	"github.com/parley-ai/parley/types"
)

// --- helpers ---

func newTestRouter(t *testing.T, cfg RouterConfig) (*Router, *Registry) {
	t.Helper()
	reg := NewRegistry(RegistryConfig{}, nil)
	return NewRouter(reg, cfg, resilience.NewHistory(3), nil), reg
}

func echoExec() Executor {
	return ExecFunc(func(_ context.Context, input string, _ *ExecutionContext) (*types.SkillResult, error) {
		return &types.SkillResult{Success: true, Output: "echo: " + input}, nil
	})
}

func TestRouter_DetectIntent_ScoresKeywordsPlusWeight(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})
	require.NoError(t, reg.Register(def("skill_code", "write", "code", "api", "implement"), echoExec()))
	require.NoError(t, reg.Register(def("skill_test", "test", "verify"), echoExec()))

	ranked := r.DetectIntent("Write and test an API")
	require.Len(t, ranked, 2)

	// skill_code: hits on "write" and "api" -> 2 + 1.0 weight = 3.0.
	assert.Equal(t, "skill_code", ranked[0].Skill.ID)
	assert.Equal(t, 2, ranked[0].KeywordHits)
	assert.InDelta(t, 3.0, ranked[0].Score, 1e-9)

	// skill_test: one hit -> 1 + 1.0 = 2.0.
	assert.Equal(t, "skill_test", ranked[1].Skill.ID)
	assert.InDelta(t, 2.0, ranked[1].Score, 1e-9)
}

func TestRouter_DetectIntent_TieKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})
	require.NoError(t, reg.Register(def("first", "hello"), echoExec()))
	require.NoError(t, reg.Register(def("second", "hello"), echoExec()))

	ranked := r.DetectIntent("hello there")
	require.Len(t, ranked, 2)
	assert.Equal(t, "first", ranked[0].Skill.ID)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
}

func TestRouter_DetectIntent_SkipsDisabled(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})
	require.NoError(t, reg.Register(def("s", "hello"), echoExec()))
	require.NoError(t, reg.SetEnabled("s", false))

	assert.Empty(t, r.DetectIntent("hello"))
}

func TestRouter_DetectIntent_WeightBreaksKeywordTie(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})
	light := def("light", "hello")
	heavy := def("heavy", "hello")
	heavy.Weight = 3.0
	require.NoError(t, reg.Register(light, echoExec()))
	require.NoError(t, reg.Register(heavy, echoExec()))

	ranked := r.DetectIntent("hello")
	require.Len(t, ranked, 2)
	assert.Equal(t, "heavy", ranked[0].Skill.ID)
}

func TestRouter_RouteTask_ExecutesBestMatch(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})
	require.NoError(t, reg.Register(def("skill_code", "code", "api"), echoExec()))
	require.NoError(t, reg.Register(def("skill_chat"), echoExec()))

	result, match, err := r.RouteTask(context.Background(), "review my api code", "review my api code", &ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, "skill_code", match.Skill.ID)
	assert.Equal(t, "echo: review my api code", result.Output)
}

func TestRouter_RouteTask_NoMatch(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{MinScore: 2.0})
	require.NoError(t, reg.Register(def("s", "golf"), echoExec()))

	_, _, err := r.RouteTask(context.Background(), "what is the weather", "", &ExecutionContext{})
	assert.Equal(t, types.ErrNoMatchingSkill, types.GetErrorCode(err))
}

func TestRouter_ExecuteSkill_Timeout(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{ExecutionTimeout: 30 * time.Millisecond})
	slow := ExecFunc(func(ctx context.Context, _ string, _ *ExecutionContext) (*types.SkillResult, error) {
		select {
		case <-time.After(time.Second):
			return &types.SkillResult{Success: true}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	require.NoError(t, reg.Register(def("slow"), slow))
	before, _ := reg.Weight("slow")

	_, err := r.ExecuteSkill(context.Background(), "slow", "in", &ExecutionContext{})
	assert.Equal(t, types.ErrSkillExecution, types.GetErrorCode(err))

	// Timeout counts as failure: weight updated downward, history fed.
	after, _ := reg.Weight("slow")
	assert.Less(t, after, before)
	assert.NotEmpty(t, r.history.Recent(1))
}

func TestRouter_ExecuteSkill_FailureCases(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})

	failing := ExecFunc(func(_ context.Context, _ string, _ *ExecutionContext) (*types.SkillResult, error) {
		return nil, errors.New("backend exploded")
	})
	unsuccessful := ExecFunc(func(_ context.Context, _ string, _ *ExecutionContext) (*types.SkillResult, error) {
		return &types.SkillResult{Success: false, Output: "partial"}, nil
	})
	require.NoError(t, reg.Register(def("failing"), failing))
	require.NoError(t, reg.Register(def("unsuccessful"), unsuccessful))
	require.NoError(t, reg.Register(def("disabled"), echoExec()))
	require.NoError(t, reg.SetEnabled("disabled", false))

	// Executor error wraps into SKILL_EXECUTION.
	_, err := r.ExecuteSkill(context.Background(), "failing", "", &ExecutionContext{})
	assert.Equal(t, types.ErrSkillExecution, types.GetErrorCode(err))

	// A result with Success=false is a failure too.
	_, err = r.ExecuteSkill(context.Background(), "unsuccessful", "", &ExecutionContext{})
	assert.Equal(t, types.ErrSkillExecution, types.GetErrorCode(err))

	// Disabled skill refuses to run.
	_, err = r.ExecuteSkill(context.Background(), "disabled", "", &ExecutionContext{})
	assert.Equal(t, types.ErrSkillExecution, types.GetErrorCode(err))

	// Unknown skill.
	_, err = r.ExecuteSkill(context.Background(), "ghost", "", &ExecutionContext{})
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestRouter_ChainSkills_PipesOutputs(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})
	upper := ExecFunc(func(_ context.Context, input string, _ *ExecutionContext) (*types.SkillResult, error) {
		return &types.SkillResult{Success: true, Output: strings.ToUpper(input)}, nil
	})
	exclaim := ExecFunc(func(_ context.Context, input string, _ *ExecutionContext) (*types.SkillResult, error) {
		return &types.SkillResult{Success: true, Output: input + "!"}, nil
	})
	require.NoError(t, reg.Register(def("upper"), upper))
	require.NoError(t, reg.Register(def("exclaim"), exclaim))

	result, err := r.ChainSkills(context.Background(), []string{"upper", "exclaim"}, "hello", &ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, "HELLO!", result.Output)
}

func TestRouter_ChainSkills_AbortsOnFirstFailure(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})
	executed := 0
	counting := ExecFunc(func(_ context.Context, input string, _ *ExecutionContext) (*types.SkillResult, error) {
		executed++
		return &types.SkillResult{Success: true, Output: input}, nil
	})
	failing := ExecFunc(func(_ context.Context, _ string, _ *ExecutionContext) (*types.SkillResult, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, reg.Register(def("a"), counting))
	require.NoError(t, reg.Register(def("b"), failing))
	require.NoError(t, reg.Register(def("c"), counting))

	_, err := r.ChainSkills(context.Background(), []string{"a", "b", "c"}, "x", &ExecutionContext{})
	require.Error(t, err)
	assert.Equal(t, 1, executed)
}

func TestRouter_ChainSkills_DetectsCycles(t *testing.T) {
	t.Parallel()
	r, reg := newTestRouter(t, RouterConfig{})

	// b recommends a, so a -> b -> a is circular.
	a := def("a")
	b := def("b")
	b.RecommendedNext = []string{"a"}
	require.NoError(t, reg.Register(a, echoExec()))
	require.NoError(t, reg.Register(b, echoExec()))

	_, err := r.ChainSkills(context.Background(), []string{"a", "b"}, "x", &ExecutionContext{})
	assert.Equal(t, types.ErrCircularDependency, types.GetErrorCode(err))

	// Duplicate member is circular by definition.
	_, err = r.ChainSkills(context.Background(), []string{"a", "a"}, "x", &ExecutionContext{})
	assert.Equal(t, types.ErrCircularDependency, types.GetErrorCode(err))

	// Recommended-next edges outside the chain are ignored.
	c := def("c")
	c.RecommendedNext = []string{"zzz"}
	require.NoError(t, reg.Register(c, echoExec()))
	_, err = r.ChainSkills(context.Background(), []string{"c"}, "x", &ExecutionContext{})
	assert.NoError(t, err)

	// Empty chain.
	_, err = r.ChainSkills(context.Background(), nil, "x", &ExecutionContext{})
	assert.Error(t, err)
}

package skill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/resilience"
	"github.com/parley-ai/parley/types"
)

// Match is one skill's intent score for a task.
type Match struct {
	Skill       types.SkillDefinition `json:"skill"`
	Score       float64               `json:"score"`
	KeywordHits int                   `json:"keyword_hits"`
}

// RouterConfig configures task routing.
type RouterConfig struct {
	// MinScore is the routing threshold; a best score below it yields
	// NO_MATCHING_SKILL.
	MinScore float64

	// ExecutionTimeout bounds one skill execution.
	ExecutionTimeout time.Duration

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func (c *RouterConfig) normalize() {
	if c.MinScore <= 0 {
		c.MinScore = 1.0
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = 30 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Router scores, selects, executes, and chains skills. Failures are
// recorded into the resilience history and every execution outcome
// updates the skill's performance weight.
type Router struct {
	registry *Registry
	config   RouterConfig
	history  *resilience.History
	logger   *zap.Logger
}

// NewRouter creates a router over registry. history may be nil.
func NewRouter(registry *Registry, config RouterConfig, history *resilience.History, logger *zap.Logger) *Router {
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		registry: registry,
		config:   config,
		history:  history,
		logger:   logger.With(zap.String("component", "skill_router")),
	}
}

// Registry returns the underlying registry.
func (r *Router) Registry() *Registry { return r.registry }

// DetectIntent scores every enabled skill against the task description
// (matched keyword count plus current performance weight) and returns
// the ranked matches, best first. Ties keep registration order, so the
// first-registered skill wins.
func (r *Router) DetectIntent(task string) []Match {
	lower := strings.ToLower(task)

	var ranked []Match
	for _, def := range r.registry.List() {
		if !def.Enabled {
			continue
		}
		hits := keywordScore(def, lower)
		ranked = append(ranked, Match{
			Skill:       def,
			Score:       float64(hits) + def.Weight,
			KeywordHits: hits,
		})
	}

	// Insertion sort keeps the registration order stable among equal
	// scores.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Score > ranked[j-1].Score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}

// RouteTask selects the best-scoring skill for the task and executes it
// with input. A best score under MinScore fails with NO_MATCHING_SKILL.
func (r *Router) RouteTask(ctx context.Context, task, input string, ec *ExecutionContext) (*types.SkillResult, Match, error) {
	ranked := r.DetectIntent(task)
	if len(ranked) == 0 || ranked[0].Score < r.config.MinScore {
		return nil, Match{}, types.NewError(types.ErrNoMatchingSkill,
			"no skill matches this request; try rephrasing it")
	}

	best := ranked[0]
	r.logger.Debug("routed task",
		zap.String("skill_id", best.Skill.ID),
		zap.Float64("score", best.Score),
		zap.Int("keyword_hits", best.KeywordHits))

	result, err := r.ExecuteSkill(ctx, best.Skill.ID, input, ec)
	return result, best, err
}

// ExecuteSkill runs the skill's executor under the configured timeout.
// Expiry counts as a failure: it updates the performance weight, feeds
// the resilience history, and surfaces SKILL_EXECUTION.
func (r *Router) ExecuteSkill(ctx context.Context, id, input string, ec *ExecutionContext) (*types.SkillResult, error) {
	def, exec, err := r.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if !def.Enabled {
		return nil, types.NewError(types.ErrSkillExecution, fmt.Sprintf("skill %s is disabled", id))
	}

	execCtx, cancel := context.WithTimeout(ctx, r.config.ExecutionTimeout)
	defer cancel()

	start := r.config.Now()
	type outcome struct {
		result *types.SkillResult
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := exec.Execute(execCtx, input, ec)
		ch <- outcome{result: res, err: err}
	}()

	var result *types.SkillResult
	select {
	case <-execCtx.Done():
		err = types.NewError(types.ErrSkillExecution,
			fmt.Sprintf("skill %s did not complete within %s", id, r.config.ExecutionTimeout)).
			WithCause(execCtx.Err())
	case out := <-ch:
		result, err = out.result, out.err
		if err == nil && result != nil && !result.Success {
			err = types.NewError(types.ErrSkillExecution, fmt.Sprintf("skill %s reported failure", id))
		}
	}
	duration := r.config.Now().Sub(start)

	r.registry.RecordExecution(types.SkillExecutionRecord{
		SkillID:   id,
		Duration:  duration,
		Success:   err == nil,
		Timestamp: start,
	})

	if err != nil {
		if r.history != nil {
			r.history.Record(resilience.Categorize(err, "skill:"+id))
		}
		r.logger.Warn("skill execution failed",
			zap.String("skill_id", id),
			zap.Duration("duration", duration),
			zap.Error(err))
		if _, ok := err.(*types.Error); ok {
			return nil, err
		}
		return nil, types.NewError(types.ErrSkillExecution, fmt.Sprintf("skill %s failed", id)).WithCause(err)
	}
	return result, nil
}

// ChainSkills executes skills sequentially, piping each output into the
// next input. The chain is validated against the recommended-next-skill
// graph first; a cycle fails fast with CIRCULAR_DEPENDENCY. The chain
// aborts on the first failure.
func (r *Router) ChainSkills(ctx context.Context, ids []string, input string, ec *ExecutionContext) (*types.SkillResult, error) {
	if len(ids) == 0 {
		return nil, types.NewError(types.ErrSkillExecution, "empty skill chain")
	}
	if err := r.validateChain(ids); err != nil {
		return nil, err
	}

	current := input
	var last *types.SkillResult
	for _, id := range ids {
		result, err := r.ExecuteSkill(ctx, id, current, ec)
		if err != nil {
			return nil, fmt.Errorf("chain aborted at %s: %w", id, err)
		}
		last = result
		current = result.Output
	}
	return last, nil
}

// validateChain rejects chains that revisit a skill or that, combined
// with the recommended-next edges of their members, contain a cycle.
func (r *Router) validateChain(ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return types.NewError(types.ErrCircularDependency,
				fmt.Sprintf("skill %s appears twice in the chain", id))
		}
		seen[id] = true
		if _, _, err := r.registry.Get(id); err != nil {
			return err
		}
	}

	// Edges: chain order plus each member's recommended-next hints,
	// restricted to chain members.
	edges := make(map[string][]string, len(ids))
	for i, id := range ids {
		if i+1 < len(ids) {
			edges[id] = append(edges[id], ids[i+1])
		}
		def, _, _ := r.registry.Get(id)
		for _, next := range def.RecommendedNext {
			if seen[next] {
				edges[id] = append(edges[id], next)
			}
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(ids))
	var visit func(string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return types.NewError(types.ErrCircularDependency,
				fmt.Sprintf("skill chain contains a cycle through %s", id))
		case done:
			return nil
		}
		state[id] = visiting
		for _, next := range edges[id] {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for _, id := range ids {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

package skill

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/types"
)

// RegistryConfig tunes performance-weight learning.
type RegistryConfig struct {
	// LearningRate is the EWMA factor applied per execution record.
	LearningRate float64

	// FastThreshold is the duration under which a successful execution
	// counts as fast.
	FastThreshold time.Duration
}

func (c *RegistryConfig) normalize() {
	if c.LearningRate <= 0 || c.LearningRate >= 1 {
		c.LearningRate = 0.2
	}
	if c.FastThreshold <= 0 {
		c.FastThreshold = 2 * time.Second
	}
}

type registered struct {
	def  types.SkillDefinition
	exec Executor
}

// Registry holds skill definitions and their executors. Registration
// order is preserved and breaks score ties (first registered wins).
// Weights are shared across sessions, so updates are synchronized.
type Registry struct {
	config RegistryConfig
	logger *zap.Logger

	mu     sync.RWMutex
	skills map[string]*registered
	order  []string
}

// NewRegistry creates an empty skill registry.
func NewRegistry(config RegistryConfig, logger *zap.Logger) *Registry {
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config: config,
		logger: logger.With(zap.String("component", "skill_registry")),
		skills: make(map[string]*registered),
	}
}

// Register adds a skill. A zero weight is initialized to 1.0; any
// weight is clamped to the allowed bound.
func (r *Registry) Register(def types.SkillDefinition, exec Executor) error {
	if def.ID == "" {
		return fmt.Errorf("skill id is required")
	}
	if exec == nil {
		return fmt.Errorf("skill %s: executor is required", def.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.skills[def.ID]; exists {
		return fmt.Errorf("skill %s already registered", def.ID)
	}
	if def.Weight == 0 {
		def.Weight = 1.0
	}
	def.Weight = types.ClampWeight(def.Weight)

	r.skills[def.ID] = &registered{def: def, exec: exec}
	r.order = append(r.order, def.ID)
	r.logger.Info("skill registered", zap.String("skill_id", def.ID),
		zap.Strings("keywords", def.Keywords))
	return nil
}

// Get returns the definition and executor for a skill id.
func (r *Registry) Get(id string) (types.SkillDefinition, Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.skills[id]
	if !ok {
		return types.SkillDefinition{}, nil, types.NewError(types.ErrNotFound, fmt.Sprintf("skill %s not registered", id))
	}
	return reg.def, reg.exec, nil
}

// List returns all definitions in registration order.
func (r *Registry) List() []types.SkillDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.SkillDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.skills[id].def)
	}
	return out
}

// SetEnabled toggles a skill.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.skills[id]
	if !ok {
		return types.NewError(types.ErrNotFound, fmt.Sprintf("skill %s not registered", id))
	}
	reg.def.Enabled = enabled
	return nil
}

// RecordExecution folds one execution record into the skill's
// performance weight:
//
//	weight = weight*(1-alpha) + observed*alpha
//
// where observed is high for fast successful executions, neutral for
// slow successes, and zero for failures. The result is clamped to the
// weight bound, so a fast success never lowers the weight and a
// failure never raises it.
func (r *Registry) RecordExecution(rec types.SkillExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.skills[rec.SkillID]
	if !ok {
		return
	}

	observed := 0.0
	if rec.Success {
		if rec.Duration <= r.config.FastThreshold {
			observed = types.MaxSkillWeight
		} else {
			observed = 1.0
		}
	}

	alpha := r.config.LearningRate
	prev := reg.def.Weight
	reg.def.Weight = types.ClampWeight(prev*(1-alpha) + observed*alpha)

	r.logger.Debug("skill weight updated",
		zap.String("skill_id", rec.SkillID),
		zap.Bool("success", rec.Success),
		zap.Duration("duration", rec.Duration),
		zap.Float64("weight_before", prev),
		zap.Float64("weight_after", reg.def.Weight))
}

// Weight returns a skill's current performance weight.
func (r *Registry) Weight(id string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.skills[id]
	if !ok {
		return 0, types.NewError(types.ErrNotFound, fmt.Sprintf("skill %s not registered", id))
	}
	return reg.def.Weight, nil
}

// keywordScore counts keywords of def appearing in the lowercased task.
func keywordScore(def types.SkillDefinition, task string) int {
	hits := 0
	for _, kw := range def.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(task, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}

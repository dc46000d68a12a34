package types

import "time"

// Performance weight bounds. A skill's weight is updated only from
// execution records and is clamped to this range after every update.
const (
	MinSkillWeight = 0.1
	MaxSkillWeight = 5.0
)

// SkillDefinition describes a registered capability. Keywords drive
// intent matching; Weight is the learned performance weight added to a
// skill's keyword score during intent detection.
type SkillDefinition struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Enabled  bool     `json:"enabled"`
	Weight   float64  `json:"weight"`
	// RecommendedNext lists skill ids that commonly follow this one.
	// Chain validation walks this graph to reject cycles.
	RecommendedNext []string `json:"recommended_next,omitempty"`
}

// SkillExecutionRecord captures one skill execution outcome. Records
// feed the performance-weight update.
type SkillExecutionRecord struct {
	SkillID   string        `json:"skill_id"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Timestamp time.Time     `json:"timestamp"`
}

// SkillResult is the outcome a skill executor returns. ChainedSkillIDs
// optionally names follow-up skills the executor suggests running next.
type SkillResult struct {
	Success         bool           `json:"success"`
	Output          string         `json:"output"`
	ChainedSkillIDs []string       `json:"chained_skill_ids,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// ClampWeight bounds a performance weight to [MinSkillWeight, MaxSkillWeight].
func ClampWeight(w float64) float64 {
	if w < MinSkillWeight {
		return MinSkillWeight
	}
	if w > MaxSkillWeight {
		return MaxSkillWeight
	}
	return w
}

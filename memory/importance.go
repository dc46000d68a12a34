package memory

import (
	"strings"
)

// ImportanceScorer derives a message importance score in [0, 1]. The
// heuristic is pluggable; compression and recall treat the score as
// opaque.
type ImportanceScorer interface {
	Score(role string, content string) float64
}

// HeuristicScorer scores messages from length, keyword presence, and
// explicit remember-this markers.
type HeuristicScorer struct {
	// Keywords that raise a message's importance.
	Keywords []string
}

// NewHeuristicScorer creates a scorer with the default keyword set.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		Keywords: []string{"important", "remember", "always", "never", "must", "deadline", "password", "key"},
	}
}

// Score implements ImportanceScorer.Score.
func (s *HeuristicScorer) Score(role string, content string) float64 {
	lower := strings.ToLower(content)
	score := 0.2

	// Longer messages tend to carry more context, up to a point.
	length := float64(len(content)) / 400.0
	if length > 1 {
		length = 1
	}
	score += 0.3 * length

	hits := 0
	for _, kw := range s.Keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if hits > 2 {
		hits = 2
	}
	score += 0.15 * float64(hits)

	// Explicit marker always pins the message near the top.
	if strings.Contains(lower, "remember this") {
		score += 0.2
	}

	if score > 1 {
		score = 1
	}
	return score
}

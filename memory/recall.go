package memory

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/parley-ai/parley/types"
)

// ScoredMessage pairs a message with its similarity to a query.
type ScoredMessage struct {
	Message types.Message `json:"message"`
	Score   float64       `json:"score"`
}

// RetrieveSimilar ranks the session's messages by cosine similarity of
// term-frequency vectors against the query and returns the top limit.
// This is approximate recall, not a vector database: no exactness
// guarantee is made.
func (m *Manager) RetrieveSimilar(ctx context.Context, sessionID, query string, limit int) ([]ScoredMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.RUnlock()
		return nil, sessionNotFound(sessionID)
	}
	msgs := append([]types.Message(nil), s.Messages...)
	m.mu.RUnlock()

	qvec := termFrequency(query)
	if len(qvec) == 0 {
		return nil, nil
	}

	scored := make([]ScoredMessage, 0, len(msgs))
	for _, msg := range msgs {
		score := cosine(qvec, termFrequency(msg.Content))
		if score > 0 {
			scored = append(scored, ScoredMessage{Message: msg, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// termFrequency builds a lightweight bag-of-terms embedding.
func termFrequency(text string) map[string]float64 {
	vec := make(map[string]float64)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		term = strings.Trim(term, ".,;:!?\"'()[]{}")
		if len(term) < 2 {
			continue
		}
		vec[term]++
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, va := range a {
		normA += va * va
		if vb, ok := b[term]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

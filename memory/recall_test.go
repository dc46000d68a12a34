package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/types"
)

func TestManager_RetrieveSimilar_RanksByOverlap(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{}, nil)
	s := m.CreateSession("alice")

	for _, content := range []string{
		"the weather in paris is rainy today",
		"my favorite food is ramen",
		"paris has great museums and the weather is mild",
		"golang generics landed in 1.18",
	} {
		_, err := m.AddMessage(context.Background(), s.ID, types.RoleUser, content)
		require.NoError(t, err)
	}

	got, err := m.RetrieveSimilar(context.Background(), s.ID, "weather in paris", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Message.Content, "paris")
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestManager_RetrieveSimilar_EdgeCases(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{}, nil)
	s := m.CreateSession("alice")
	_, err := m.AddMessage(context.Background(), s.ID, types.RoleUser, "hello world")
	require.NoError(t, err)

	// Empty query yields no results.
	got, err := m.RetrieveSimilar(context.Background(), s.ID, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Disjoint query yields no results, not zero-score noise.
	got, err = m.RetrieveSimilar(context.Background(), s.ID, "quantum entanglement", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Unknown session.
	_, err = m.RetrieveSimilar(context.Background(), "nope", "hello", 5)
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))

	// Cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.RetrieveSimilar(ctx, s.ID, "hello", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeuristicScorer_Score(t *testing.T) {
	t.Parallel()
	scorer := NewHeuristicScorer()

	tests := []struct {
		name    string
		content string
		min     float64
		max     float64
	}{
		{"short smalltalk", "hi", 0.2, 0.25},
		{"remember marker", "remember this: I am allergic to peanuts", 0.55, 1.0},
		{"keyword hit", "the deadline is friday", 0.35, 0.6},
		{"long message caps at one", string(make([]byte, 2000)) + " important remember this must", 0.9, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score("user", tt.content)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestHeuristicSummarizer_KeepsTopImportance(t *testing.T) {
	t.Parallel()
	sum := &HeuristicSummarizer{MaxQuoted: 2}

	msgs := []types.Message{
		{Role: types.RoleUser, Content: "noise", Importance: 0.1},
		{Role: types.RoleUser, Content: "the deadline is monday", Importance: 0.9},
		{Role: types.RoleAssistant, Content: "noted", Importance: 0.2},
		{Role: types.RoleUser, Content: "remember this: budget is 5k", Importance: 0.95},
	}
	text, err := sum.Summarize(context.Background(), msgs)
	require.NoError(t, err)
	assert.Contains(t, text, "deadline is monday")
	assert.Contains(t, text, "budget is 5k")
	assert.NotContains(t, text, "noise")
}

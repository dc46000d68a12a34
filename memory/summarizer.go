package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/types"
)

// Summarizer compresses a message prefix into one summary string.
type Summarizer interface {
	Summarize(ctx context.Context, messages []types.Message) (string, error)
}

// LLMSummarizer summarizes through the backend adapter.
type LLMSummarizer struct {
	provider llm.Provider
	model    string
}

// NewLLMSummarizer creates an LLM-backed summarizer.
func NewLLMSummarizer(provider llm.Provider, model string) *LLMSummarizer {
	return &LLMSummarizer{provider: provider, model: model}
}

// Summarize implements Summarizer.Summarize.
func (s *LLMSummarizer) Summarize(ctx context.Context, messages []types.Message) (string, error) {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := s.provider.Chat(ctx, &llm.ChatRequest{
		Model: s.model,
		Messages: []types.Message{
			types.NewSystemMessage("Summarize the following conversation history in a few sentences. Preserve names, decisions, and anything the user asked to remember."),
			types.NewUserMessage(b.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize history: %w", err)
	}
	return resp.Content, nil
}

// HeuristicSummarizer builds a summary without calling the backend. It
// keeps the highest-importance messages verbatim and counts the rest.
type HeuristicSummarizer struct {
	// MaxQuoted bounds how many messages are quoted verbatim.
	MaxQuoted int
}

// Summarize implements Summarizer.Summarize.
func (s *HeuristicSummarizer) Summarize(_ context.Context, messages []types.Message) (string, error) {
	maxQuoted := s.MaxQuoted
	if maxQuoted <= 0 {
		maxQuoted = 3
	}

	quoted := topByImportance(messages, maxQuoted)
	var b strings.Builder
	fmt.Fprintf(&b, "Earlier conversation (%d messages).", len(messages))
	for _, m := range quoted {
		fmt.Fprintf(&b, " %s said: %q.", m.Role, truncateContent(m.Content, 160))
	}
	return b.String(), nil
}

func topByImportance(messages []types.Message, n int) []types.Message {
	if len(messages) <= n {
		return messages
	}
	// Selection keeps original order among the chosen messages.
	chosen := make(map[int]bool, n)
	for k := 0; k < n; k++ {
		best, bestScore := -1, -1.0
		for i, m := range messages {
			if chosen[i] {
				continue
			}
			if m.Importance > bestScore {
				best, bestScore = i, m.Importance
			}
		}
		chosen[best] = true
	}
	out := make([]types.Message, 0, n)
	for i, m := range messages {
		if chosen[i] {
			out = append(out, m)
		}
	}
	return out
}

func truncateContent(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

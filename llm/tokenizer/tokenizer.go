// Package tokenizer provides token counting for context budgeting.
// An estimator covers arbitrary models; OpenAI-family models get exact
// counts through tiktoken.
package tokenizer

import (
	"github.com/parley-ai/parley/types"
)

// Tokenizer is the unified token counting interface.
type Tokenizer interface {
	// CountTokens returns the token count for the given text.
	CountTokens(text string) (int, error)

	// CountMessages returns the total token count for a message list,
	// including per-message overhead (role markers, separators).
	CountMessages(messages []types.Message) (int, error)

	// Name returns the tokenizer's name.
	Name() string
}

// ForModel returns the best available tokenizer for a model name:
// tiktoken when the model has a known encoding, the estimator otherwise.
func ForModel(model string) Tokenizer {
	if t, err := NewTiktokenTokenizer(model); err == nil {
		return t
	}
	return NewEstimator()
}

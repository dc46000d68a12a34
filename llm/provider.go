package llm

import (
	"context"
	"time"

	"github.com/parley-ai/parley/types"
)

// TokenStats reports token consumption for one chat exchange.
type TokenStats struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatRequest is a chat completion request against the backend.
type ChatRequest struct {
	Model       string            `json:"model,omitempty"`
	Messages    []types.Message   `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ChatResponse is a complete (non-streaming) chat result.
type ChatResponse struct {
	ID        string     `json:"id,omitempty"`
	Model     string     `json:"model,omitempty"`
	Content   string     `json:"content"`
	Usage     TokenStats `json:"usage,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// StreamChunk is one increment of a streaming chat response. The final
// chunk carries Final=true and, when available, usage stats. A chunk
// with Err set terminates the stream.
type StreamChunk struct {
	Index int         `json:"index"`
	Delta string      `json:"delta,omitempty"`
	Final bool        `json:"final,omitempty"`
	Usage *TokenStats `json:"usage,omitempty"`
	Err   error       `json:"-"`
}

// Provider is the unified adapter interface to an LLM backend.
//
// Implementations must respect ctx cancellation on every method and
// close the channel returned by ChatStream once the stream ends, errors
// out, or the context is cancelled.
type Provider interface {
	// Chat sends a synchronous chat request and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatStream sends a chat request and returns incremental chunks.
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// Embed computes an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// HealthCheck probes backend availability.
	HealthCheck(ctx context.Context) (bool, error)

	// Name returns the provider's unique identifier.
	Name() string
}

package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/types"
)

const demoEmbeddingDim = 64

// DemoProvider is a deterministic offline backend. It powers demo-mode
// fallback responses when the real backend is unavailable and keeps
// tests hermetic.
type DemoProvider struct {
	// Latency is injected before each response to mimic a network hop.
	Latency time.Duration

	logger *zap.Logger
}

// NewDemoProvider creates a demo provider.
func NewDemoProvider(logger *zap.Logger) *DemoProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemoProvider{
		logger: logger.With(zap.String("component", "llm_demo")),
	}
}

// Chat implements Provider.Chat.
func (p *DemoProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	content := p.respond(req.Messages)
	return &ChatResponse{
		ID:      uuid.NewString(),
		Model:   "demo",
		Content: content,
		Usage: TokenStats{
			PromptTokens:     estimateTokens(req.Messages),
			CompletionTokens: len(content) / 4,
			TotalTokens:      estimateTokens(req.Messages) + len(content)/4,
		},
		CreatedAt: time.Now(),
	}, nil
}

// ChatStream implements Provider.ChatStream. The response is split into
// word-sized chunks; a cancelled context stops the producer promptly.
func (p *DemoProvider) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}

	content := p.respond(req.Messages)
	words := strings.SplitAfter(content, " ")

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for i, w := range words {
			chunk := StreamChunk{Index: i, Delta: w}
			if i == len(words)-1 {
				chunk.Final = true
				chunk.Usage = &TokenStats{CompletionTokens: len(content) / 4, TotalTokens: len(content) / 4}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Embed implements Provider.Embed with a hashed bag-of-terms vector.
// Equal texts always map to equal vectors.
func (p *DemoProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, demoEmbeddingDim)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(term))
		vec[h.Sum32()%demoEmbeddingDim]++
	}
	return vec, nil
}

// HealthCheck implements Provider.HealthCheck.
func (p *DemoProvider) HealthCheck(ctx context.Context) (bool, error) {
	return ctx.Err() == nil, ctx.Err()
}

// Name implements Provider.Name.
func (p *DemoProvider) Name() string { return "demo" }

func (p *DemoProvider) wait(ctx context.Context) error {
	if p.Latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(p.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *DemoProvider) respond(messages []types.Message) string {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			last = messages[i].Content
			break
		}
	}
	if last == "" {
		return "Hello! I'm running in demo mode."
	}
	return fmt.Sprintf("[demo] I received your message (%d chars): %s", len(last), truncate(last, 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func estimateTokens(messages []types.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)/4 + 4
	}
	return total
}

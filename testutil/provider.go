// Package testutil provides fakes shared by the package test suites: a
// scriptable LLM provider and a controllable clock.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/parley-ai/parley/llm"
)

// ScriptedProvider is an llm.Provider whose outcomes are predetermined.
// Each Chat call consumes the next step of the script; when the script
// is exhausted the provider keeps returning the last step. A nil script
// behaves as a single always-succeeding step echoing the last message.
type ScriptedProvider struct {
	mu     sync.Mutex
	script []Step
	pos    int
	calls  int

	// StreamChunks, when set, is replayed by ChatStream instead of
	// word-splitting the scripted content.
	StreamChunks []llm.StreamChunk

	// Healthy controls HealthCheck. Defaults to true.
	unhealthy bool
}

// Step is one scripted Chat outcome.
type Step struct {
	Content string
	Err     error
}

// NewScriptedProvider builds a provider that replays steps in order.
func NewScriptedProvider(steps ...Step) *ScriptedProvider {
	return &ScriptedProvider{script: steps}
}

// Failing builds a provider whose every call returns err.
func Failing(err error) *ScriptedProvider {
	return NewScriptedProvider(Step{Err: err})
}

func (p *ScriptedProvider) next() Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.script) == 0 {
		return Step{}
	}
	step := p.script[p.pos]
	if p.pos < len(p.script)-1 {
		p.pos++
	}
	return step
}

// Calls reports how many Chat/ChatStream invocations reached the
// provider. Useful for asserting an open breaker short-circuited.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// SetHealthy toggles the HealthCheck result.
func (p *ScriptedProvider) SetHealthy(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unhealthy = !ok
}

func (p *ScriptedProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step := p.next()
	if step.Err != nil {
		return nil, step.Err
	}
	content := step.Content
	if content == "" && len(req.Messages) > 0 {
		content = req.Messages[len(req.Messages)-1].Content
	}
	return &llm.ChatResponse{Content: content}, nil
}

func (p *ScriptedProvider) ChatStream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step := p.next()
	if step.Err != nil {
		return nil, step.Err
	}

	out := make(chan llm.StreamChunk)
	chunks := p.StreamChunks
	if chunks == nil {
		for i, w := range strings.Fields(step.Content) {
			delta := w
			if i > 0 {
				delta = " " + w
			}
			chunks = append(chunks, llm.StreamChunk{Index: i, Delta: delta})
		}
		chunks = append(chunks, llm.StreamChunk{Index: len(chunks), Final: true})
	}
	go func() {
		defer close(out)
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *ScriptedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, 8)
	for i, r := range text {
		vec[i%8] += float64(r % 13)
	}
	return vec, nil
}

func (p *ScriptedProvider) HealthCheck(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.unhealthy, nil
}

func (p *ScriptedProvider) Name() string { return "scripted" }

package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider bounds the request rate against the backend with
// a token bucket. Waiting respects ctx, so a cancelled caller never
// blocks on the limiter.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider wraps provider with a limiter allowing rps
// requests per second and the given burst.
func NewRateLimitedProvider(provider Provider, rps float64, burst int) *RateLimitedProvider {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Chat implements Provider.Chat.
func (p *RateLimitedProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.provider.Chat(ctx, req)
}

// ChatStream implements Provider.ChatStream.
func (p *RateLimitedProvider) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.provider.ChatStream(ctx, req)
}

// Embed implements Provider.Embed.
func (p *RateLimitedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.provider.Embed(ctx, text)
}

// HealthCheck implements Provider.HealthCheck. Health probes bypass the
// limiter so supervision keeps working under load.
func (p *RateLimitedProvider) HealthCheck(ctx context.Context) (bool, error) {
	return p.provider.HealthCheck(ctx)
}

// Name implements Provider.Name.
func (p *RateLimitedProvider) Name() string { return p.provider.Name() }

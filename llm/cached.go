package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/llm/requestcache"
)

// CachedProvider wraps a Provider with the request-fingerprint cache.
// Identical Chat requests inside the TTL window are answered from
// cache, and concurrent identical requests share one backend call.
// Streaming and embedding calls are passed through untouched: streams
// are consumed once, and embeddings are cheap and session-local.
type CachedProvider struct {
	provider Provider
	cache    *requestcache.Cache
	logger   *zap.Logger
}

// NewCachedProvider wraps provider with cache.
func NewCachedProvider(provider Provider, cache *requestcache.Cache, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		logger:   logger.With(zap.String("component", "llm_cached")),
	}
}

// Chat implements Provider.Chat with fingerprint deduplication.
func (p *CachedProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	key, err := requestcache.Fingerprint(req.Model, req.Messages, req.MaxTokens, req.Temperature)
	if err != nil {
		// Unfingerprintable requests still get served, just uncached.
		p.logger.Warn("request fingerprint failed", zap.Error(err))
		return p.provider.Chat(ctx, req)
	}

	data, cached, err := p.cache.Do(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		resp, err := p.provider.Chat(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
	if err != nil {
		return nil, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode cached response: %w", err)
	}
	if cached {
		p.logger.Debug("served chat response from request cache", zap.String("fingerprint", key[:12]))
	}
	return &resp, nil
}

// ChatStream implements Provider.ChatStream (pass-through).
func (p *CachedProvider) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	return p.provider.ChatStream(ctx, req)
}

// Embed implements Provider.Embed (pass-through).
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return p.provider.Embed(ctx, text)
}

// HealthCheck implements Provider.HealthCheck (pass-through).
func (p *CachedProvider) HealthCheck(ctx context.Context) (bool, error) {
	return p.provider.HealthCheck(ctx)
}

// Name implements Provider.Name.
func (p *CachedProvider) Name() string { return p.provider.Name() }

// CacheStats exposes the underlying cache counters.
func (p *CachedProvider) CacheStats() requestcache.Stats { return p.cache.Stats() }

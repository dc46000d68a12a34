package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/memory"
	"github.com/parley-ai/parley/persistence"
	"github.com/parley-ai/parley/resilience"
	"github.com/parley-ai/parley/skill"
	"github.com/parley-ai/parley/types"
)

// LLMBackend is the dependency name the LLM adapter's circuit breaker
// runs under.
const LLMBackend = "llm-backend"

// BuiltinChatSkill is the general-conversation skill every runtime
// registers.
const BuiltinChatSkill = "chat"

// Runtime is the explicit context object composing the whole pipeline.
// It is constructed once at process start; there are no package-level
// singletons.
type Runtime struct {
	config     *config.Config
	memory     *memory.Manager
	router     *skill.Router
	resilience *resilience.Manager
	provider   llm.Provider
	fallback   llm.Provider
	archive    persistence.SessionStore
	events     *eventBus
	logger     *zap.Logger

	// sessionLocks serializes pipeline steps per session; different
	// sessions proceed fully concurrently.
	sessionLocks sync.Map // session id -> *sync.Mutex
}

// New builds a runtime from its collaborators. provider is the real
// backend adapter (already wrapped with caching/rate limiting as the
// wiring sees fit); archive may be nil when session export is unused.
func New(cfg *config.Config, provider llm.Provider, archive persistence.SessionStore, logger *zap.Logger) *Runtime {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runtime{
		config:   cfg,
		provider: provider,
		fallback: llm.NewDemoProvider(logger),
		archive:  archive,
		events:   newEventBus(),
		logger:   logger.With(zap.String("component", "orchestrator")),
	}

	r.resilience = resilience.NewManager(resilience.ManagerConfig{
		Breaker: resilience.BreakerConfig{
			FailureThreshold:         cfg.Resilience.FailureThreshold,
			RecoveryTimeout:          cfg.Resilience.RecoveryTimeout,
			HalfOpenSuccessThreshold: cfg.Resilience.HalfOpenSuccessThreshold,
			OnStateChange: func(dependency string, from, to resilience.State) {
				r.events.emit(Event{
					Type:       EventBreakerChanged,
					Dependency: dependency,
					FromState:  from.String(),
					ToState:    to.String(),
				})
			},
		},
		MaxRetryAttempts: cfg.Resilience.MaxRetryAttempts,
		WarningThreshold: cfg.Resilience.UnrecoveredWarningThreshold,
	}, logger)

	r.memory = memory.NewManager(memory.Config{
		ContextWindowSize:    cfg.Memory.ContextWindowSize,
		CompressionThreshold: cfg.Memory.CompressionThreshold,
		CompressionKeepLast:  cfg.Memory.CompressionKeepLast,
	}, memory.NewLLMSummarizer(r.guardedSummaryProvider(), cfg.LLM.Model), logger)

	registry := skill.NewRegistry(skill.RegistryConfig{
		LearningRate: cfg.Skills.LearningRate,
	}, logger)
	r.router = skill.NewRouter(registry, skill.RouterConfig{
		MinScore:         cfg.Skills.MinScore,
		ExecutionTimeout: cfg.Skills.ExecutionTimeout,
	}, r.resilience.History(), logger)

	r.registerBuiltins()
	return r
}

// Memory exposes the memory manager.
func (r *Runtime) Memory() *memory.Manager { return r.memory }

// Router exposes the skill router.
func (r *Runtime) Router() *skill.Router { return r.router }

// Resilience exposes the resilience manager.
func (r *Runtime) Resilience() *resilience.Manager { return r.resilience }

// RegisterSkill adds a capability to the runtime's registry.
func (r *Runtime) RegisterSkill(def types.SkillDefinition, exec skill.Executor) error {
	return r.router.Registry().Register(def, exec)
}

// registerBuiltins installs the default chat skill: it sends the
// session's context window to the backend through the resilience layer.
func (r *Runtime) registerBuiltins() {
	def := types.SkillDefinition{
		ID:       BuiltinChatSkill,
		Name:     "General conversation",
		Keywords: []string{"chat", "talk", "hello", "explain", "help", "question"},
		Enabled:  true,
	}
	exec := skill.ExecFunc(func(ctx context.Context, input string, ec *skill.ExecutionContext) (*types.SkillResult, error) {
		messages := append([]types.Message(nil), ec.History...)
		if len(messages) == 0 || messages[len(messages)-1].Content != input {
			messages = append(messages, types.NewUserMessage(input))
		}
		resp, degraded, err := r.Chat(ctx, &llm.ChatRequest{Model: r.config.LLM.Model, Messages: messages})
		if err != nil {
			return nil, err
		}
		return &types.SkillResult{
			Success:  true,
			Output:   resp.Content,
			Metadata: map[string]any{"degraded": degraded, "tokens": resp.Usage.TotalTokens},
		}, nil
	})
	if err := r.router.Registry().Register(def, exec); err != nil {
		r.logger.Error("failed to register builtin chat skill", zap.Error(err))
	}
}

// Chat sends a chat request through the resilience layer. When the
// breaker is open or the fallback strategy applies, the demo provider
// substitutes a degraded response (degraded=true) instead of failing.
func (r *Runtime) Chat(ctx context.Context, req *llm.ChatRequest) (resp *llm.ChatResponse, degraded bool, err error) {
	resp, err = resilience.Do(ctx, r.resilience, LLMBackend, func(ctx context.Context) (*llm.ChatResponse, error) {
		return r.provider.Chat(ctx, req)
	})
	if err == nil {
		return resp, false, nil
	}
	if errors.Is(err, resilience.ErrFallback) || errors.Is(err, resilience.ErrCircuitOpen) {
		fb, ferr := r.fallback.Chat(ctx, req)
		if ferr != nil {
			return nil, false, err
		}
		return fb, true, nil
	}
	return nil, false, err
}

// Embed computes an embedding through the resilience layer.
func (r *Runtime) Embed(ctx context.Context, text string) ([]float64, error) {
	return resilience.Do(ctx, r.resilience, LLMBackend, func(ctx context.Context) ([]float64, error) {
		return r.provider.Embed(ctx, text)
	})
}

// HealthCheck probes the backend directly, bypassing the breaker so
// supervision can observe recovery.
func (r *Runtime) HealthCheck(ctx context.Context) (bool, error) {
	return r.provider.HealthCheck(ctx)
}

// ExportSession archives a session through the persistence collaborator.
func (r *Runtime) ExportSession(ctx context.Context, sessionID string) (string, error) {
	if r.archive == nil {
		return "", types.NewError(types.ErrInternal, "no session archive configured")
	}
	session, err := r.memory.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	return r.archive.ExportSession(ctx, session)
}

// ImportSession restores an archived session into memory and returns it.
func (r *Runtime) ImportSession(ctx context.Context, location string) (*types.Session, error) {
	if r.archive == nil {
		return nil, types.NewError(types.ErrInternal, "no session archive configured")
	}
	session, err := r.archive.ImportSession(ctx, location)
	if err != nil {
		return nil, err
	}
	r.memory.Restore(session)
	return session, nil
}

// guardedSummaryProvider adapts the runtime's guarded chat path into an
// llm.Provider for the memory summarizer, so compression calls also go
// through the breaker.
func (r *Runtime) guardedSummaryProvider() llm.Provider {
	return &summaryProvider{runtime: r}
}

type summaryProvider struct {
	runtime *Runtime
}

func (p *summaryProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, _, err := p.runtime.Chat(ctx, req)
	return resp, err
}

func (p *summaryProvider) ChatStream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	return p.runtime.provider.ChatStream(ctx, req)
}

func (p *summaryProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	return p.runtime.Embed(ctx, text)
}

func (p *summaryProvider) HealthCheck(ctx context.Context) (bool, error) {
	return p.runtime.HealthCheck(ctx)
}

func (p *summaryProvider) Name() string { return "guarded:" + p.runtime.provider.Name() }

// lockSession serializes pipeline steps for one session and returns
// the unlock function.
func (r *Runtime) lockSession(sessionID string) func() {
	v, _ := r.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

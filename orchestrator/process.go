package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/telemetry"
	"github.com/parley-ai/parley/resilience"
	"github.com/parley-ai/parley/skill"
	"github.com/parley-ai/parley/types"
)

// ProcessMessage runs the full pipeline for one inbound message:
// persist-inbound, build-context, route, execute (behind the resilience
// layer), optional chaining, persist-outbound, return.
//
// Handled failures (no matching skill, open breaker, exhausted
// recovery) still produce an AgentResponse whose content is the
// category's human-readable fallback message; a non-nil error is
// reserved for contract violations and caller cancellation.
func (r *Runtime) ProcessMessage(ctx context.Context, req *types.AgentRequest) (*types.AgentResponse, error) {
	if req == nil || strings.TrimSpace(req.UserMessage) == "" {
		return nil, types.NewError(types.ErrInternal, "user message is required")
	}
	start := time.Now()

	ctx, span := telemetry.StartSpan(ctx, "orchestrator.ProcessMessage",
		attribute.String("session_id", req.SessionID),
		attribute.Bool("chaining", req.AllowChaining))
	var spanErr error
	defer func() { telemetry.End(span, spanErr) }()

	session := r.memory.EnsureSession(req.SessionID, req.UserID)
	unlock := r.lockSession(session.ID)
	defer unlock()

	if _, err := r.memory.AddMessage(ctx, session.ID, types.RoleUser, req.UserMessage); err != nil {
		spanErr = err
		return nil, err
	}

	window, err := r.memory.GetContextWindow(session.ID, 0)
	if err != nil {
		spanErr = err
		return nil, err
	}
	ec := &skill.ExecutionContext{
		SessionID: session.ID,
		UserID:    session.UserID,
		History:   window,
	}

	result, match, skillsUsed, routeErr := r.route(ctx, req, ec)

	var content string
	confidence := 0.0
	degraded := false
	switch {
	case routeErr == nil:
		content = result.Output
		confidence = confidenceFor(match)
		if d, ok := result.Metadata["degraded"].(bool); ok {
			degraded = d
		}
	case ctx.Err() != nil:
		// Caller went away; no response to persist.
		spanErr = ctx.Err()
		return nil, spanErr
	default:
		content = resilience.UserMessage(types.GetErrorCode(routeErr))
		degraded = true
	}

	if r.resilience.ShouldWarn() {
		content += "\n\n" + resilience.DegradationWarning
	}

	if _, err := r.memory.AddMessage(ctx, session.ID, types.RoleAssistant, content); err != nil {
		spanErr = err
		return nil, err
	}

	duration := time.Since(start)
	r.events.emit(Event{
		Type:      EventMessageProcessed,
		SessionID: session.ID,
		Success:   routeErr == nil,
		Degraded:  degraded,
		Duration:  duration,
	})
	r.logger.Debug("message processed",
		zap.String("session_id", session.ID),
		zap.Strings("skills_used", skillsUsed),
		zap.Duration("duration", duration),
		zap.Bool("degraded", degraded))

	resp := &types.AgentResponse{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		Content:    content,
		SkillsUsed: skillsUsed,
		Duration:   duration,
		Confidence: confidence,
		Metadata:   map[string]any{"degraded": degraded},
	}
	if routeErr != nil {
		resp.Metadata["error_category"] = string(types.GetErrorCode(routeErr))
	}
	return resp, nil
}

// route executes the routing stage: forced skill, or intent detection,
// plus optional chaining suggested by the executed skill.
func (r *Runtime) route(ctx context.Context, req *types.AgentRequest, ec *skill.ExecutionContext) (*types.SkillResult, skill.Match, []string, error) {
	var (
		result *types.SkillResult
		match  skill.Match
		used   []string
		err    error
	)

	if req.ForceSkill != "" {
		result, err = r.router.ExecuteSkill(ctx, req.ForceSkill, req.UserMessage, ec)
		if err == nil {
			used = append(used, req.ForceSkill)
		}
	} else {
		result, match, err = r.router.RouteTask(ctx, req.UserMessage, req.UserMessage, ec)
		if err == nil {
			used = append(used, match.Skill.ID)
		}
	}
	if err != nil {
		return nil, match, nil, err
	}

	r.events.emit(Event{
		Type:      EventSkillExecuted,
		SessionID: ec.SessionID,
		SkillID:   used[len(used)-1],
		Success:   true,
	})

	if req.AllowChaining && len(result.ChainedSkillIDs) > 0 {
		chain := result.ChainedSkillIDs
		chained, cerr := r.router.ChainSkills(ctx, chain, result.Output, ec)
		if cerr != nil {
			// A broken chain keeps the primary result; the failure is
			// already recorded by the router.
			r.logger.Warn("skill chain failed", zap.Strings("chain", chain), zap.Error(cerr))
		} else {
			result = chained
			used = append(used, unique(chain, used)...)
		}
	}
	return result, match, used, nil
}

func confidenceFor(m skill.Match) float64 {
	if m.Skill.ID == "" {
		return 0.5
	}
	c := m.Score / (float64(m.KeywordHits) + types.MaxSkillWeight)
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func unique(ids, existing []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

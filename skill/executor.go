package skill

import (
	"context"

	"github.com/parley-ai/parley/types"
)

// ExecutionContext carries per-task state into an executor.
type ExecutionContext struct {
	SessionID string
	UserID    string
	// History is the session's current context window.
	History  []types.Message
	Metadata map[string]any
}

// Executor runs one skill. Implementations must honor ctx and return
// (or fail) within the timeout the router applies.
type Executor interface {
	Execute(ctx context.Context, input string, ec *ExecutionContext) (*types.SkillResult, error)
}

// ExecFunc adapts a function to the Executor interface.
type ExecFunc func(ctx context.Context, input string, ec *ExecutionContext) (*types.SkillResult, error)

// Execute implements Executor.Execute.
func (f ExecFunc) Execute(ctx context.Context, input string, ec *ExecutionContext) (*types.SkillResult, error) {
	return f(ctx, input, ec)
}

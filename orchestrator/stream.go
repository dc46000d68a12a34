package orchestrator

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/resilience"
	"github.com/parley-ai/parley/streaming"
	"github.com/parley-ai/parley/types"
)

// StreamResponse runs the streaming variant of the pipeline: chunks are
// forwarded to the caller as the backend produces them, but all memory
// bookkeeping (inbound and outbound persistence) happens only once the
// stream completes or is cancelled. A partial stream never produces
// partial bookkeeping.
//
// The returned stream is finite and not restartable. Cancelling it
// releases the session lock promptly and registers no breaker failure:
// cancellation is not a failure.
func (r *Runtime) StreamResponse(ctx context.Context, req *types.AgentRequest) (*streaming.Stream, error) {
	if req == nil || strings.TrimSpace(req.UserMessage) == "" {
		return nil, types.NewError(types.ErrInternal, "user message is required")
	}

	session := r.memory.EnsureSession(req.SessionID, req.UserID)
	unlock := r.lockSession(session.ID)

	window, err := r.memory.GetContextWindow(session.ID, 0)
	if err != nil {
		unlock()
		return nil, err
	}
	messages := append(window, types.NewUserMessage(req.UserMessage))

	breaker := r.resilience.Breakers().Get(LLMBackend)
	if err := breaker.Allow(); err != nil {
		unlock()
		return nil, err
	}

	chunks, err := r.provider.ChatStream(ctx, &llm.ChatRequest{
		Model:    r.config.LLM.Model,
		Messages: messages,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			breaker.RecordFailure()
		}
		unlock()
		return nil, err
	}

	stream := streaming.New(r.config.LLM.StreamBufferSize)
	go r.pumpStream(ctx, session.ID, req.UserMessage, stream, chunks, breaker, unlock)
	return stream, nil
}

type breakerRecorder interface {
	RecordSuccess()
	RecordFailure()
}

// pumpStream forwards backend chunks into the consumer stream and
// performs terminal bookkeeping exactly once.
func (r *Runtime) pumpStream(ctx context.Context, sessionID, userMessage string, stream *streaming.Stream, chunks <-chan llm.StreamChunk, breaker breakerRecorder, unlock func()) {
	var assembled strings.Builder
	var streamErr error
	cancelled := false
	index := 0

loop:
	for {
		select {
		case chunk, open := <-chunks:
			if !open {
				break loop
			}
			if chunk.Err != nil {
				streamErr = chunk.Err
				break loop
			}
			assembled.WriteString(chunk.Delta)
			werr := stream.Write(ctx, streaming.Chunk{
				Content: chunk.Delta,
				Index:   index,
				Final:   chunk.Final,
			})
			index++
			if werr != nil {
				cancelled = errors.Is(werr, streaming.ErrCancelled)
				if !cancelled {
					streamErr = werr
				}
				break loop
			}
		case <-stream.Done():
			cancelled = true
			break loop
		case <-ctx.Done():
			cancelled = errors.Is(ctx.Err(), context.Canceled)
			if !cancelled {
				streamErr = ctx.Err()
			}
			break loop
		}
	}

	// Terminal bookkeeping. The inbound message is always persisted;
	// the assistant message only when the stream ran to completion.
	switch {
	case cancelled:
		// Clean cancellation: release the lock without a breaker mark.
		if _, err := r.memory.AddMessage(context.Background(), sessionID, types.RoleUser, userMessage); err != nil {
			r.logger.Warn("persist after cancel failed", zap.Error(err))
		}
	case streamErr != nil:
		breaker.RecordFailure()
		r.resilience.History().Record(resilience.Categorize(streamErr, LLMBackend))
		if _, err := r.memory.AddMessage(context.Background(), sessionID, types.RoleUser, userMessage); err != nil {
			r.logger.Warn("persist after stream error failed", zap.Error(err))
		}
	default:
		breaker.RecordSuccess()
		bg := context.Background()
		if _, err := r.memory.AddMessage(bg, sessionID, types.RoleUser, userMessage); err != nil {
			r.logger.Warn("persist inbound failed", zap.Error(err))
		}
		if _, err := r.memory.AddMessage(bg, sessionID, types.RoleAssistant, assembled.String()); err != nil {
			r.logger.Warn("persist outbound failed", zap.Error(err))
		}
	}
	unlock()

	stream.Close(streamErr)
	r.events.emit(Event{
		Type:      EventStreamFinished,
		SessionID: sessionID,
		Success:   streamErr == nil && !cancelled,
		Cancelled: cancelled,
	})
}

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/llm/tokenizer"
	"github.com/parley-ai/parley/types"
)

// Config configures the memory manager.
type Config struct {
	// ContextWindowSize caps GetContextWindow results.
	ContextWindowSize int

	// CompressionThreshold is the message count past which a
	// compression pass runs.
	CompressionThreshold int

	// CompressionKeepLast is how many trailing messages compression
	// leaves untouched.
	CompressionKeepLast int

	// Scorer overrides the importance heuristic.
	Scorer ImportanceScorer

	// Tokenizer overrides the per-message token estimator.
	Tokenizer tokenizer.Tokenizer

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func (c *Config) normalize() {
	if c.ContextWindowSize <= 0 {
		c.ContextWindowSize = 50
	}
	if c.CompressionThreshold <= 0 {
		c.CompressionThreshold = 100
	}
	if c.CompressionKeepLast <= 0 || c.CompressionKeepLast >= c.CompressionThreshold {
		c.CompressionKeepLast = 30
	}
	if c.Scorer == nil {
		c.Scorer = NewHeuristicScorer()
	}
	if c.Tokenizer == nil {
		c.Tokenizer = tokenizer.NewEstimator()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Manager owns all sessions and is the only component that mutates
// them. It is safe for concurrent use; the orchestrator additionally
// serializes pipeline steps per session.
type Manager struct {
	config     Config
	summarizer Summarizer
	logger     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*types.Session
}

// NewManager creates a memory manager. summarizer may be nil, in which
// case compression always uses the truncation path.
func NewManager(config Config, summarizer Summarizer, logger *zap.Logger) *Manager {
	config.normalize()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config:     config,
		summarizer: summarizer,
		logger:     logger.With(zap.String("component", "memory")),
		sessions:   make(map[string]*types.Session),
	}
}

// CreateSession creates a new session for userID and returns its clone.
func (m *Manager) CreateSession(userID string) *types.Session {
	now := m.config.Now()
	s := &types.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session created", zap.String("session_id", s.ID), zap.String("user_id", userID))
	return s.Clone()
}

// EnsureSession resolves sessionID to an existing session or creates a
// fresh one for userID (first inbound message creates the session).
func (m *Manager) EnsureSession(sessionID, userID string) *types.Session {
	if sessionID != "" {
		m.mu.RLock()
		s, ok := m.sessions[sessionID]
		m.mu.RUnlock()
		if ok {
			return s.Clone()
		}
	}
	return m.CreateSession(userID)
}

// GetSession returns a clone of the session.
func (m *Manager) GetSession(sessionID string) (*types.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, sessionNotFound(sessionID)
	}
	return s.Clone(), nil
}

// SetTopic updates the session's topic metadata.
func (m *Manager) SetTopic(sessionID, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return sessionNotFound(sessionID)
	}
	s.Topic = topic
	return nil
}

// AddMessage appends a message to the session, scoring importance and
// estimating its token count, then runs a compression pass if the
// session has grown past the threshold.
func (m *Manager) AddMessage(ctx context.Context, sessionID string, role types.Role, content string) (types.Message, error) {
	msg := types.Message{
		ID:         uuid.NewString(),
		Role:       role,
		Content:    content,
		Timestamp:  m.config.Now(),
		Importance: m.config.Scorer.Score(string(role), content),
	}
	if tokens, err := m.config.Tokenizer.CountTokens(content); err == nil {
		msg.TokenCount = tokens
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return types.Message{}, sessionNotFound(sessionID)
	}
	s.Messages = append(s.Messages, msg)
	s.LastActivity = msg.Timestamp
	needsCompression := len(s.Messages) > m.config.CompressionThreshold
	m.mu.Unlock()

	if needsCompression {
		if _, err := m.Compress(ctx, sessionID); err != nil {
			// Compression never blocks message intake.
			m.logger.Warn("compression failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return msg, nil
}

// GetContextWindow returns the trailing messages of the session, most
// recent last. maxMessages <= 0 selects the configured window size; the
// result never exceeds the configured cap regardless of the argument.
func (m *Manager) GetContextWindow(sessionID string, maxMessages int) ([]types.Message, error) {
	limit := m.config.ContextWindowSize
	if maxMessages > 0 && maxMessages < limit {
		limit = maxMessages
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, sessionNotFound(sessionID)
	}

	msgs := s.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]types.Message(nil), msgs...), nil
}

// Compress replaces all but the last CompressionKeepLast messages with
// one synthetic summary message. Past the keep-last boundary it is
// idempotent: a session at or under keepLast+1 messages is left alone.
// Summarization failure falls back to truncation rather than blocking.
func (m *Manager) Compress(ctx context.Context, sessionID string) (bool, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.RUnlock()
		return false, sessionNotFound(sessionID)
	}
	total := len(s.Messages)
	keep := m.config.CompressionKeepLast
	if total <= keep+1 {
		m.mu.RUnlock()
		return false, nil
	}
	prefix := append([]types.Message(nil), s.Messages[:total-keep]...)
	m.mu.RUnlock()

	// Summarize outside the lock; the prefix is an immutable snapshot
	// and AddMessage only appends past it.
	summaryText := ""
	if m.summarizer != nil {
		text, err := m.summarizer.Summarize(ctx, prefix)
		if err != nil {
			m.logger.Warn("summarization failed, truncating history",
				zap.String("session_id", sessionID), zap.Error(err))
		} else {
			summaryText = text
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok = m.sessions[sessionID]
	if !ok {
		return false, sessionNotFound(sessionID)
	}
	// Messages may have arrived while summarizing; the snapshot prefix
	// is still the oldest contiguous run, so replacing it stays valid.
	if len(s.Messages) < len(prefix) {
		return false, nil
	}

	tail := append([]types.Message(nil), s.Messages[len(prefix):]...)
	if summaryText == "" {
		// Truncation fallback: drop the prefix entirely.
		s.Messages = tail
	} else {
		summary := types.Message{
			ID:         uuid.NewString(),
			Role:       types.RoleSummary,
			Content:    summaryText,
			Timestamp:  m.config.Now(),
			Importance: 0.9,
		}
		if tokens, err := m.config.Tokenizer.CountTokens(summaryText); err == nil {
			summary.TokenCount = tokens
		}
		s.Messages = append([]types.Message{summary}, tail...)
	}
	s.Compressions++

	m.logger.Info("session compressed",
		zap.String("session_id", sessionID),
		zap.Int("before", len(prefix)+len(tail)),
		zap.Int("after", len(s.Messages)))
	return true, nil
}

// Restore registers a session reconstructed by the persistence
// collaborator, replacing any in-memory session with the same id.
func (m *Manager) Restore(s *types.Session) {
	clone := s.Clone()
	m.mu.Lock()
	m.sessions[clone.ID] = clone
	m.mu.Unlock()
	m.logger.Info("session restored", zap.String("session_id", clone.ID),
		zap.Int("messages", len(clone.Messages)))
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func sessionNotFound(id string) error {
	return types.NewError(types.ErrSessionNotFound, fmt.Sprintf("session %s not found", id))
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/parley-ai/parley/types"
)

// --- mocks ---

type mockSummarizer struct {
	result string
	err    error
	calls  int
}

func (m *mockSummarizer) Summarize(_ context.Context, msgs []types.Message) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if m.result != "" {
		return m.result, nil
	}
	return fmt.Sprintf("summary of %d messages", len(msgs)), nil
}

// --- helpers ---

func newTestManager(t *testing.T, cfg Config, s Summarizer) *Manager {
	t.Helper()
	return NewManager(cfg, s, nil)
}

func fill(t *testing.T, m *Manager, sessionID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		_, err := m.AddMessage(context.Background(), sessionID, role, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
	}
}

func TestManager_CreateAndGetSession(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{}, nil)

	s := m.CreateSession("alice")
	require.NotEmpty(t, s.ID)
	assert.Equal(t, "alice", s.UserID)

	got, err := m.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	_, err = m.GetSession("nope")
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
}

func TestManager_EnsureSession(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{}, nil)

	// Empty id creates a fresh session.
	s1 := m.EnsureSession("", "bob")
	require.NotEmpty(t, s1.ID)

	// Known id resolves the existing session.
	s2 := m.EnsureSession(s1.ID, "bob")
	assert.Equal(t, s1.ID, s2.ID)

	// Unknown id falls back to creating one.
	s3 := m.EnsureSession("vanished", "bob")
	assert.NotEqual(t, s1.ID, s3.ID)
	assert.Equal(t, 2, m.SessionCount())
}

func TestManager_AddMessage_ScoresAndCounts(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{}, nil)
	s := m.CreateSession("alice")

	msg, err := m.AddMessage(context.Background(), s.ID, types.RoleUser, "remember this: my birthday is in June")
	require.NoError(t, err)
	assert.Greater(t, msg.Importance, 0.2)
	assert.Greater(t, msg.TokenCount, 0)

	_, err = m.AddMessage(context.Background(), "nope", types.RoleUser, "hi")
	assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
}

func TestManager_GetContextWindow_CapsAtConfiguredSize(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{ContextWindowSize: 10, CompressionThreshold: 1000, CompressionKeepLast: 30}, nil)
	s := m.CreateSession("alice")
	fill(t, m, s.ID, 25)

	// Default limit.
	window, err := m.GetContextWindow(s.ID, 0)
	require.NoError(t, err)
	assert.Len(t, window, 10)
	assert.Equal(t, "message 24", window[len(window)-1].Content)

	// Smaller explicit limit wins.
	window, err = m.GetContextWindow(s.ID, 3)
	require.NoError(t, err)
	assert.Len(t, window, 3)
	assert.Equal(t, "message 22", window[0].Content)

	// A larger request never exceeds the configured cap.
	window, err = m.GetContextWindow(s.ID, 500)
	require.NoError(t, err)
	assert.Len(t, window, 10)
}

func TestManager_ContextWindow_NeverExceedsCap(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(1, 40).Draw(rt, "size")
		total := rapid.IntRange(0, 120).Draw(rt, "total")
		ask := rapid.IntRange(-5, 200).Draw(rt, "ask")

		m := NewManager(Config{ContextWindowSize: size, CompressionThreshold: 1000}, nil, nil)
		s := m.CreateSession("p")
		for i := 0; i < total; i++ {
			_, err := m.AddMessage(context.Background(), s.ID, types.RoleUser, fmt.Sprintf("m%d", i))
			if err != nil {
				rt.Fatal(err)
			}
		}

		window, err := m.GetContextWindow(s.ID, ask)
		if err != nil {
			rt.Fatal(err)
		}
		if len(window) > size {
			rt.Fatalf("window has %d messages, cap is %d", len(window), size)
		}
		// Most recent last, contiguous tail.
		if total > 0 && len(window) > 0 {
			last := window[len(window)-1].Content
			if last != fmt.Sprintf("m%d", total-1) {
				rt.Fatalf("window does not end at newest message: %q", last)
			}
		}
	})
}

func TestManager_Compress_ReplacesPrefixWithSummary(t *testing.T) {
	t.Parallel()
	sum := &mockSummarizer{result: "they discussed the weather"}
	m := newTestManager(t, Config{CompressionThreshold: 100, CompressionKeepLast: 30, ContextWindowSize: 200}, sum)
	s := m.CreateSession("alice")

	// The 101st message crosses the threshold and triggers compression.
	fill(t, m, s.ID, 101)

	got, err := m.GetSession(s.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got.Messages), 31)
	require.True(t, got.Messages[0].IsSummary())
	assert.Equal(t, "they discussed the weather", got.Messages[0].Content)
	assert.Equal(t, "message 100", got.Messages[len(got.Messages)-1].Content)
	assert.Equal(t, 1, got.Compressions)
	assert.Equal(t, 1, sum.calls)
}

func TestManager_Compress_IdempotentNearKeepLast(t *testing.T) {
	t.Parallel()
	sum := &mockSummarizer{}
	m := newTestManager(t, Config{CompressionThreshold: 100, CompressionKeepLast: 30}, sum)
	s := m.CreateSession("alice")
	fill(t, m, s.ID, 31)

	// 31 messages = keepLast+1: nothing to do.
	compressed, err := m.Compress(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, compressed)

	compressed, err = m.Compress(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, compressed)

	got, err := m.GetSession(s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 31)
	assert.Zero(t, got.Compressions)
}

func TestManager_Compress_SummarizerFailureFallsBackToTruncation(t *testing.T) {
	t.Parallel()
	sum := &mockSummarizer{err: errors.New("model unavailable")}
	m := newTestManager(t, Config{CompressionThreshold: 100, CompressionKeepLast: 30}, sum)
	s := m.CreateSession("alice")
	fill(t, m, s.ID, 50)

	compressed, err := m.Compress(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, compressed)

	got, err := m.GetSession(s.ID)
	require.NoError(t, err)
	// Truncation keeps only the tail; no summary message is inserted.
	assert.Len(t, got.Messages, 30)
	assert.False(t, got.Messages[0].IsSummary())
	assert.Equal(t, "message 49", got.Messages[len(got.Messages)-1].Content)
	assert.Equal(t, 1, got.Compressions)
}

func TestManager_Compress_NilSummarizerTruncates(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{CompressionThreshold: 100, CompressionKeepLast: 30}, nil)
	s := m.CreateSession("alice")
	fill(t, m, s.ID, 40)

	compressed, err := m.Compress(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, compressed)

	got, err := m.GetSession(s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 30)
}

func TestManager_Restore_ReplacesSession(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{}, nil)

	restored := &types.Session{
		ID:     "imported-1",
		UserID: "carol",
		Messages: []types.Message{
			{ID: "m1", Role: types.RoleUser, Content: "hello", Timestamp: time.Now()},
		},
	}
	m.Restore(restored)

	got, err := m.GetSession("imported-1")
	require.NoError(t, err)
	assert.Equal(t, "carol", got.UserID)
	require.Len(t, got.Messages, 1)

	// Restore stores a clone; mutating the input must not leak in.
	restored.Messages[0].Content = "tampered"
	got, err = m.GetSession("imported-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Messages[0].Content)
}

func TestManager_SetTopic(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{}, nil)
	s := m.CreateSession("alice")

	require.NoError(t, m.SetTopic(s.ID, "travel"))
	got, err := m.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "travel", got.Topic)

	assert.Error(t, m.SetTopic("nope", "x"))
}

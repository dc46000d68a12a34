package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/types"
)

// --- helpers ---

func sampleSession(id string, messages int) *types.Session {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := &types.Session{
		ID:           id,
		UserID:       "alice",
		Topic:        "travel",
		CreatedAt:    now,
		LastActivity: now.Add(time.Duration(messages) * time.Minute),
		Compressions: 2,
	}
	for i := 0; i < messages; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		s.Messages = append(s.Messages, types.Message{
			ID:         fmt.Sprintf("%s-m%d", id, i),
			Role:       role,
			Content:    fmt.Sprintf("message %d", i),
			Timestamp:  now.Add(time.Duration(i) * time.Minute),
			Importance: 0.5,
			TokenCount: 4,
		})
	}
	return s
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db"), nil)
	require.NoError(t, err)
	return store
}

func assertSameSession(t *testing.T, want, got *types.Session) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Topic, got.Topic)
	assert.Equal(t, want.Compressions, got.Compressions)
	require.Len(t, got.Messages, len(want.Messages))
	for i := range want.Messages {
		assert.Equal(t, want.Messages[i].ID, got.Messages[i].ID)
		assert.Equal(t, want.Messages[i].Role, got.Messages[i].Role)
		assert.Equal(t, want.Messages[i].Content, got.Messages[i].Content)
		assert.Equal(t, want.Messages[i].Importance, got.Messages[i].Importance)
	}
}

func TestSQLiteStore_ExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	want := sampleSession("s1", 7)

	location, err := store.ExportSession(context.Background(), want)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:s1", location)

	got, err := store.ImportSession(context.Background(), location)
	require.NoError(t, err)
	assertSameSession(t, want, got)
}

func TestSQLiteStore_ReExportReplaces(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	first := sampleSession("s1", 10)
	_, err := store.ExportSession(context.Background(), first)
	require.NoError(t, err)

	// The session shrank after compression; re-export must not leave
	// stale rows behind.
	second := sampleSession("s1", 3)
	location, err := store.ExportSession(context.Background(), second)
	require.NoError(t, err)

	got, err := store.ImportSession(context.Background(), location)
	require.NoError(t, err)
	assertSameSession(t, second, got)
}

func TestSQLiteStore_ImportUnknownLocation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.ImportSession(context.Background(), "sqlite:ghost")
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestSQLiteStore_ExportValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.ExportSession(context.Background(), nil)
	assert.Error(t, err)
	_, err = store.ExportSession(context.Background(), &types.Session{})
	assert.Error(t, err)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	want := sampleSession("s1", 4)

	location, err := store.ExportSession(context.Background(), want)
	require.NoError(t, err)
	assert.Equal(t, "mem:s1", location)

	got, err := store.ImportSession(context.Background(), location)
	require.NoError(t, err)
	assertSameSession(t, want, got)

	// The store holds a clone: later mutation of the exported session
	// must not bleed into the archive.
	want.Messages[0].Content = "tampered"
	got, err = store.ImportSession(context.Background(), location)
	require.NoError(t, err)
	assert.Equal(t, "message 0", got.Messages[0].Content)

	_, err = store.ImportSession(context.Background(), "mem:ghost")
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

// Package persistence implements the session archive collaborator:
// exporting a session to durable storage and reconstructing it later.
// The core only depends on the SessionStore interface.
package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/parley-ai/parley/types"
)

// SessionStore archives and restores sessions. ExportSession returns a
// location token that a later ImportSession resolves; the imported
// session carries the same message order and content.
type SessionStore interface {
	ExportSession(ctx context.Context, session *types.Session) (location string, err error)
	ImportSession(ctx context.Context, location string) (*types.Session, error)
}

// MemoryStore is an in-process SessionStore for tests and ephemeral
// deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*types.Session)}
}

// ExportSession implements SessionStore.ExportSession.
func (s *MemoryStore) ExportSession(_ context.Context, session *types.Session) (string, error) {
	if session == nil || session.ID == "" {
		return "", fmt.Errorf("session with id is required")
	}
	s.mu.Lock()
	s.sessions[session.ID] = session.Clone()
	s.mu.Unlock()
	return "mem:" + session.ID, nil
}

// ImportSession implements SessionStore.ImportSession.
func (s *MemoryStore) ImportSession(_ context.Context, location string) (*types.Session, error) {
	id := strings.TrimPrefix(location, "mem:")
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, types.NewError(types.ErrNotFound, fmt.Sprintf("no archived session at %s", location))
	}
	return session.Clone(), nil
}

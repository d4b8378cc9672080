package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/menuflow/pkg/domain"
)

// Store implements ports.SessionStore and ports.Committer in memory.
// Safe for concurrent use.
type Store struct {
	sessions map[string]*domain.Session
	vars     map[string]map[string]string
	mu       sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		vars:     make(map[string]map[string]string),
	}
}

// LoadSession retrieves a copy of the session.
func (s *Store) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[userID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	// Copy on read so the caller can't mutate store state through the pointer
	return session.Clone(), nil
}

// SaveSession persists a copy of the session.
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSession(session)
	return nil
}

func (s *Store) saveSession(session *domain.Session) {
	c := session.Clone()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	s.sessions[session.UserID] = c
}

// LoadVariable retrieves one variable.
func (s *Store) LoadVariable(ctx context.Context, userID, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vars[userID][name]
	if !ok {
		return "", domain.ErrVariableNotFound
	}
	return v, nil
}

// SaveVariable persists one variable.
func (s *Store) SaveVariable(ctx context.Context, userID, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setVars(userID, map[string]string{name: value})
	return nil
}

func (s *Store) setVars(userID string, vars map[string]string) {
	m, ok := s.vars[userID]
	if !ok {
		m = make(map[string]string, len(vars))
		s.vars[userID] = m
	}
	maps.Copy(m, vars)
}

// LoadVariables retrieves a copy of every variable of a user.
func (s *Store) LoadVariables(ctx context.Context, userID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := maps.Clone(s.vars[userID])
	if out == nil {
		out = make(map[string]string)
	}
	return out, nil
}

// Commit saves the session and the variable changes under one lock.
func (s *Store) Commit(ctx context.Context, session *domain.Session, vars map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setVars(session.UserID, vars)
	s.saveSession(session)
	return nil
}

// DeleteSession removes the session and its variables.
func (s *Store) DeleteSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	delete(s.vars, userID)
	return nil
}

// ListSessions returns the users with a session, sorted.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Package variables keeps the per-user variable sets used by traversal.
//
// Store is an engine-scoped read-through cache in front of a
// ports.SessionStore. The cache is keyed by the session generation and
// revision, so a step committed on another replica (which bumps the revision)
// or a session recreated after a reset (which gets a new generation)
// invalidates it.
// Writes made during a step go to a Tx and only reach the cache after the
// engine has committed them.
package variables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/aretw0/menuflow/internal/logging"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
)

// Version identifies one committed state of a session's variables.
type Version struct {
	Generation string
	Revision   int64
}

// VersionOf returns the version a session was committed at.
func VersionOf(s *domain.Session) Version {
	return Version{Generation: s.Generation, Revision: s.Revision}
}

type entry struct {
	version Version
	vars    map[string]string
}

// Store caches variables per user on top of a SessionStore.
type Store struct {
	backend ports.SessionStore
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store over backend.
func NewStore(backend ports.SessionStore, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  logging.NewNop(),
		cache:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one variable of a user, or domain.ErrVariableNotFound.
func (s *Store) Get(ctx context.Context, userID, name string) (string, error) {
	s.mu.RLock()
	e, ok := s.cache[userID]
	if ok {
		v, found := e.vars[name]
		s.mu.RUnlock()
		if found {
			return v, nil
		}
	} else {
		s.mu.RUnlock()
	}
	return s.backend.LoadVariable(ctx, userID, name)
}

// Set stores one variable outside of a traversal step and flushes it
// synchronously. A nil value is a no-op; non-string values are stringified.
// Set does not bump the session revision: the local cache is dropped, and
// other replicas only see the value once the user's next step commits.
func (s *Store) Set(ctx context.Context, userID, name string, value any) error {
	str, ok := Stringify(value)
	if !ok {
		return nil
	}
	if err := s.backend.SaveVariable(ctx, userID, name, str); err != nil {
		return &domain.PersistenceError{UserID: userID, Err: err}
	}
	s.Evict(userID)
	return nil
}

// All returns a copy of every variable of a user.
func (s *Store) All(ctx context.Context, userID string) (map[string]string, error) {
	s.mu.RLock()
	e, ok := s.cache[userID]
	if ok {
		out := maps.Clone(e.vars)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	vars, err := s.backend.LoadVariables(ctx, userID)
	if err != nil {
		return nil, &domain.PersistenceError{UserID: userID, Err: err}
	}
	return vars, nil
}

// Begin opens a step transaction over the user's variables as of version.
// The cached snapshot is reused only when it was taken at the same version.
func (s *Store) Begin(ctx context.Context, userID string, version Version) (*Tx, error) {
	s.mu.RLock()
	e, ok := s.cache[userID]
	if ok && e.version == version {
		base := maps.Clone(e.vars)
		s.mu.RUnlock()
		return newTx(userID, base), nil
	}
	s.mu.RUnlock()

	vars, err := s.backend.LoadVariables(ctx, userID)
	if err != nil {
		return nil, &domain.PersistenceError{UserID: userID, Err: fmt.Errorf("load variables: %w", err)}
	}
	if vars == nil {
		vars = make(map[string]string)
	}

	s.mu.Lock()
	s.cache[userID] = &entry{version: version, vars: maps.Clone(vars)}
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Variables loaded",
		"user_id", userID,
		"generation", version.Generation,
		"revision", version.Revision,
		"count", len(vars),
	)
	return newTx(userID, vars), nil
}

// Apply merges committed changes into the cache and records the new version.
// It must only be called after the backend confirmed the write.
func (s *Store) Apply(userID string, version Version, changes map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache[userID]
	if !ok {
		// Nothing cached: the next Begin reloads from the backend.
		return
	}
	maps.Copy(e.vars, changes)
	e.version = version
}

// Evict drops the cached variables of a user.
func (s *Store) Evict(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// Stringify converts a value to its stored form. ok is false for nil.
func Stringify(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return fmt.Sprintf("%v", v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), true
		}
		return string(data), true
	}
}

// IsNotFound reports whether err means the variable does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrVariableNotFound)
}

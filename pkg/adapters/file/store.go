package file

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/menuflow/pkg/domain"
)

// record is the on-disk document of one user.
type record struct {
	Session   *domain.Session   `json:"session,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Store implements ports.SessionStore and ports.Committer on the local
// filesystem: one JSON document per user, replaced atomically on every write.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// NewStore creates a new Store with the given base path.
// If basePath is empty, it defaults to ".menuflow/sessions".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".menuflow", "sessions")
	}
	return &Store{BasePath: basePath}
}

// User ids carry characters such as ':' and '@'; encode them into safe names.
func (s *Store) path(userID string) string {
	return filepath.Join(s.BasePath, base64.RawURLEncoding.EncodeToString([]byte(userID))+".json")
}

func (s *Store) read(userID string) (*record, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}
	data, err := os.ReadFile(s.path(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return &record{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session file: %w", err)
	}
	return &rec, nil
}

// write persists the record atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) write(userID string, rec *record) error {
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return writeAtomic(s.BasePath, s.path(userID), data)
}

func writeAtomic(dir, destPath string, data []byte) error {
	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// LoadSession retrieves the session of a user.
func (s *Store) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(userID)
	if err != nil {
		return nil, err
	}
	if rec.Session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return rec.Session, nil
}

// SaveSession persists the session of a user.
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	return s.Commit(ctx, session, nil)
}

// Commit replaces the user's document with the new session and merged variables.
func (s *Store) Commit(ctx context.Context, session *domain.Session, vars map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(session.UserID)
	if err != nil {
		return err
	}
	rec.Session = session.Clone()
	if len(vars) > 0 {
		if rec.Variables == nil {
			rec.Variables = make(map[string]string, len(vars))
		}
		maps.Copy(rec.Variables, vars)
	}
	return s.write(session.UserID, rec)
}

// LoadVariable retrieves one variable.
func (s *Store) LoadVariable(ctx context.Context, userID, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(userID)
	if err != nil {
		return "", err
	}
	v, ok := rec.Variables[name]
	if !ok {
		return "", domain.ErrVariableNotFound
	}
	return v, nil
}

// SaveVariable persists one variable.
func (s *Store) SaveVariable(ctx context.Context, userID, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(userID)
	if err != nil {
		return err
	}
	if rec.Variables == nil {
		rec.Variables = make(map[string]string)
	}
	rec.Variables[name] = value
	return s.write(userID, rec)
}

// LoadVariables retrieves every variable of a user.
func (s *Store) LoadVariables(ctx context.Context, userID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(userID)
	if err != nil {
		return nil, err
	}
	if rec.Variables == nil {
		return map[string]string{}, nil
	}
	return rec.Variables, nil
}

// DeleteSession removes the user's document.
func (s *Store) DeleteSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(userID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// ListSessions returns the users with a stored session, sorted.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var users []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		rec, err := s.read(string(raw))
		if err != nil || rec.Session == nil {
			continue
		}
		users = append(users, string(raw))
	}
	sort.Strings(users)
	return users, nil
}

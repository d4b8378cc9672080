package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/menuflow/pkg/domain"
)

// MockStore structure
type MockStore struct{}

func (m *MockStore) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	return nil, domain.ErrSessionNotFound
}
func (m *MockStore) SaveSession(ctx context.Context, session *domain.Session) error { return nil }
func (m *MockStore) LoadVariable(ctx context.Context, userID, name string) (string, error) {
	return "", domain.ErrVariableNotFound
}
func (m *MockStore) SaveVariable(ctx context.Context, userID, name, value string) error { return nil }
func (m *MockStore) LoadVariables(ctx context.Context, userID string) (map[string]string, error) {
	return map[string]string{}, nil
}
func (m *MockStore) DeleteSession(ctx context.Context, userID string) error { return nil }
func (m *MockStore) ListSessions(ctx context.Context) ([]string, error)     { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()
	count := 10000

	// 1. Create and Delete many sessions
	for i := 0; i < count; i++ {
		uid := fmt.Sprintf("@user-%d:example.org", i)
		_ = mgr.Save(ctx, domain.NewSession(uid, "start"))
		_ = mgr.Delete(ctx, uid)
	}

	// 2. Count locks remaining in map
	lockCount := len(mgr.locks)

	// 3. Assert Leak
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}

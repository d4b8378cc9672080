package ports

import (
	"context"

	"github.com/aretw0/menuflow/pkg/domain"
)

// SessionStore defines the interface for persisting per-user conversation state.
// Sessions and variables are stored independently so a backend can keep the
// variable set as a hash and the session as a document.
type SessionStore interface {
	// LoadSession retrieves the session of a user.
	// Returns domain.ErrSessionNotFound if the user has no session.
	LoadSession(ctx context.Context, userID string) (*domain.Session, error)

	// SaveSession persists the session of a user, replacing any previous value.
	SaveSession(ctx context.Context, session *domain.Session) error

	// LoadVariable retrieves a single variable of a user.
	// Returns domain.ErrVariableNotFound if the variable was never set.
	LoadVariable(ctx context.Context, userID, name string) (string, error)

	// SaveVariable persists a single variable of a user.
	SaveVariable(ctx context.Context, userID, name, value string) error

	// LoadVariables retrieves every variable of a user. An unknown user yields
	// an empty map, not an error.
	LoadVariables(ctx context.Context, userID string) (map[string]string, error)

	// DeleteSession removes the session and all variables of a user.
	DeleteSession(ctx context.Context, userID string) error

	// ListSessions returns the ids of all users with a stored session.
	ListSessions(ctx context.Context) ([]string, error)
}

// Committer is implemented by stores that can persist a session together with
// a batch of variable changes as one unit. The engine prefers it over
// individual SaveVariable/SaveSession calls.
type Committer interface {
	Commit(ctx context.Context, session *domain.Session, vars map[string]string) error
}

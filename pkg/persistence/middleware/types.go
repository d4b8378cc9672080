// Package middleware wraps a ports.SessionStore with cross-cutting behavior:
// at-rest encryption of variable values and PII masking for inspection tools.
package middleware

import (
	"context"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
)

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// commitTo keeps the atomic commit of the wrapped store when it has one.
func commitTo(ctx context.Context, next ports.SessionStore, session *domain.Session, vars map[string]string) error {
	if c, ok := next.(ports.Committer); ok {
		return c.Commit(ctx, session, vars)
	}
	for name, value := range vars {
		if err := next.SaveVariable(ctx, session.UserID, name, value); err != nil {
			return err
		}
	}
	return next.SaveSession(ctx, session)
}

package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
)

// Mask replaces the value of a variable whose name matches a PII pattern.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks, on read, the variables
// whose names match one of the patterns. Writes pass through untouched, so
// the wrapper is meant for inspection tools, not for the engine.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) sensitive(name string) bool {
	for _, p := range m.patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	return m.next.LoadSession(ctx, userID)
}

func (m *piiMiddleware) SaveSession(ctx context.Context, session *domain.Session) error {
	return m.next.SaveSession(ctx, session)
}

func (m *piiMiddleware) LoadVariable(ctx context.Context, userID, name string) (string, error) {
	v, err := m.next.LoadVariable(ctx, userID, name)
	if err != nil {
		return "", err
	}
	if m.sensitive(name) {
		return Mask, nil
	}
	return v, nil
}

func (m *piiMiddleware) SaveVariable(ctx context.Context, userID, name, value string) error {
	return m.next.SaveVariable(ctx, userID, name, value)
}

func (m *piiMiddleware) LoadVariables(ctx context.Context, userID string) (map[string]string, error) {
	vars, err := m.next.LoadVariables(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Copy so the backend's map is never mutated.
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		if m.sensitive(k) {
			v = Mask
		}
		out[k] = v
	}
	return out, nil
}

func (m *piiMiddleware) Commit(ctx context.Context, session *domain.Session, vars map[string]string) error {
	return commitTo(ctx, m.next, session, vars)
}

func (m *piiMiddleware) DeleteSession(ctx context.Context, userID string) error {
	return m.next.DeleteSession(ctx, userID)
}

func (m *piiMiddleware) ListSessions(ctx context.Context) ([]string, error) {
	return m.next.ListSessions(ctx)
}

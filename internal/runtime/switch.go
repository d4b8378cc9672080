package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/menuflow/pkg/domain"
)

// resolve picks the case matching discriminant (or the default case), applies
// its assignments in declaration order and returns its successor. An empty
// successor means the user stays at owner.
func (s *step) resolve(ctx context.Context, owner domain.Node, discriminant string, cases []domain.Case) (string, error) {
	c, ok := domain.FindCase(cases, discriminant)
	if !ok {
		return "", &domain.ConfigurationError{
			NodeID: owner.NodeID(),
			Reason: fmt.Sprintf("no case matches %q and there is no default case", discriminant),
			Err:    domain.ErrMissingDefaultCase,
		}
	}

	for _, a := range c.Variables {
		s.tx.Set(a.Name, s.engine.renderer.Render(ctx, a.Value, s.tx.All()))
	}

	s.engine.logger.DebugContext(ctx, "Case resolved",
		"node_id", owner.NodeID(),
		"discriminant", discriminant,
		"case", c.ID,
		"o_connection", c.OConnection,
	)
	return c.OConnection, nil
}

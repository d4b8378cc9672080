package cli

import (
	"context"

	"github.com/aretw0/menuflow/internal/config"
	"github.com/aretw0/menuflow/pkg/persistence/middleware"
)

// OpenInspector opens the configured store for the session commands. Reads
// mask the variables matching store.pii_patterns unless reveal is set.
func OpenInspector(ctx context.Context, cfg *config.Config, reveal bool) (*Backend, error) {
	b, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if reveal || len(cfg.Store.PIIPatterns) == 0 {
		return b, nil
	}
	pii, err := middleware.NewPIIMiddleware(cfg.Store.PIIPatterns)
	if err != nil {
		_ = b.Close(ctx)
		return nil, err
	}
	b.Store = pii(b.Store)
	return b, nil
}

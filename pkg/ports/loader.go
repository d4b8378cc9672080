package ports

import (
	"context"

	"github.com/aretw0/menuflow/pkg/domain"
)

// MenuLoader defines how the engine retrieves the flow definition.
// This allows the source (file, memory, remote) to be decoupled from traversal.
type MenuLoader interface {
	// Load parses and returns the complete Menu.
	Load(ctx context.Context) (*domain.Menu, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload of the flow definition.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying flow changes.
	// It abstracts away the specific event details, signaling only that a reload is required.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

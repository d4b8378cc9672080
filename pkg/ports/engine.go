package ports

import (
	"context"

	"github.com/aretw0/menuflow/pkg/domain"
)

// Processor is the driving port used by transports (webhook, console).
// One call runs one traversal step for the sender of the inbound message.
type Processor interface {
	Process(ctx context.Context, in domain.Inbound, out Messenger) (*domain.Result, error)
}

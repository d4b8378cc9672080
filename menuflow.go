package menuflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/menuflow/internal/logging"
	"github.com/aretw0/menuflow/internal/runtime"
	"github.com/aretw0/menuflow/pkg/adapters/memory"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
	"github.com/aretw0/menuflow/pkg/session"
)

// ErrNotWatchable is returned by Watch when the loader cannot signal changes.
var ErrNotWatchable = errors.New("current loader does not support watching")

// Bot is the high-level entry point of the library. It filters inbound
// messages and hands them to the traversal engine.
type Bot struct {
	engine   *runtime.Engine
	loader   ports.MenuLoader
	sessions *session.Manager
	logger   *slog.Logger

	store         ports.SessionStore
	locker        ports.DistributedLocker
	lockTTL       time.Duration
	selfID        string
	ignored       map[string]struct{}
	maxInputBytes int
	hooks         domain.LifecycleHooks
	runtimeOpts   []runtime.EngineOption
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithStore sets the session store (default: in-memory).
func WithStore(store ports.SessionStore) Option {
	return func(b *Bot) {
		b.store = store
	}
}

// WithLocker enables distributed per-user locking across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(b *Bot) {
		b.locker = locker
		b.lockTTL = ttl
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithSelfID sets the bot's own chat id. Messages it sent are never processed.
func WithSelfID(id string) Option {
	return func(b *Bot) {
		b.selfID = id
	}
}

// WithIgnoredUsers drops every message from the given senders.
func WithIgnoredUsers(ids ...string) Option {
	return func(b *Bot) {
		for _, id := range ids {
			b.ignored[id] = struct{}{}
		}
	}
}

// WithMaxInputBytes sets the maximum accepted message body size.
func WithMaxInputBytes(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.maxInputBytes = n
		}
	}
}

// WithEntryNode configures the node new sessions start at.
func WithEntryNode(nodeID string) Option {
	return func(b *Bot) {
		if nodeID != "" {
			b.runtimeOpts = append(b.runtimeOpts, runtime.WithEntryNode(nodeID))
		}
	}
}

// WithEngineOptions passes options to the traversal engine.
func WithEngineOptions(opts ...runtime.EngineOption) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, opts...)
	}
}

// New loads the menu from loader and builds a Bot serving it.
func New(ctx context.Context, loader ports.MenuLoader, opts ...Option) (*Bot, error) {
	if loader == nil {
		return nil, errors.New("a menu loader is required")
	}
	b := &Bot{
		loader:        loader,
		logger:        logging.NewNop(),
		ignored:       make(map[string]struct{}),
		maxInputBytes: DefaultMaxInputSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.store == nil {
		b.store = memory.NewStore()
	}

	menu, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}
	b.logger = b.logger.With("menu", menu.ID)

	sessionOpts := []session.Option{session.WithLogger(b.logger)}
	if b.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(b.locker))
		if b.lockTTL > 0 {
			sessionOpts = append(sessionOpts, session.WithLockTTL(b.lockTTL))
		}
	}
	b.sessions = session.NewManager(b.store, sessionOpts...)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(b.logger),
		runtime.WithLifecycleHooks(b.hooks),
	}
	runtimeOpts = append(runtimeOpts, b.runtimeOpts...)

	b.engine, err = runtime.NewEngine(menu, b.sessions, runtimeOpts...)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Ignored reports whether messages from userID are dropped.
func (b *Bot) Ignored(userID string) bool {
	if userID == b.selfID && b.selfID != "" {
		return true
	}
	_, ok := b.ignored[userID]
	return ok
}

// Handle runs one traversal step for in. A nil Result with a nil error means
// the message was ignored.
func (b *Bot) Handle(ctx context.Context, in domain.Inbound, out ports.Messenger) (*domain.Result, error) {
	if b.Ignored(in.UserID) {
		b.logger.DebugContext(ctx, "Ignoring message", "user_id", in.UserID)
		return nil, nil
	}
	body, err := SanitizeInput(in.Body, b.maxInputBytes)
	if err != nil {
		b.logger.WarnContext(ctx, "Input rejected", "user_id", in.UserID, "error", err, "size", len(in.Body))
		return nil, err
	}
	in.Body = body
	return b.engine.Process(ctx, in, out)
}

// Process implements ports.Processor.
func (b *Bot) Process(ctx context.Context, in domain.Inbound, out ports.Messenger) (*domain.Result, error) {
	return b.Handle(ctx, in, out)
}

// Reload loads the menu again and swaps it in. On failure the current menu
// keeps being served.
func (b *Bot) Reload(ctx context.Context) error {
	menu, err := b.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load menu: %w", err)
	}
	return b.engine.Reload(menu)
}

// Watch reloads the menu each time the loader signals a change, until ctx
// is done. Reload failures are logged.
func (b *Bot) Watch(ctx context.Context) error {
	w, ok := b.loader.(ports.Watchable)
	if !ok {
		return ErrNotWatchable
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := b.Reload(ctx); err != nil {
				b.logger.Error("Menu reload failed, keeping the current menu", "error", err)
			}
		}
	}
}

// Menu returns the menu currently served.
func (b *Bot) Menu() *domain.Menu {
	return b.engine.Menu()
}

// Session returns the stored position and variables of a user.
func (b *Bot) Session(ctx context.Context, userID string) (*domain.Session, map[string]string, error) {
	s, err := b.sessions.Load(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	vars, err := b.store.LoadVariables(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return s, vars, nil
}

// Sessions lists the users with a stored session.
func (b *Bot) Sessions(ctx context.Context) ([]string, error) {
	return b.sessions.List(ctx)
}

// Reset forgets a user: the next message starts the menu over.
func (b *Bot) Reset(ctx context.Context, userID string) error {
	if err := b.sessions.Delete(ctx, userID); err != nil {
		return err
	}
	b.engine.Variables().Evict(userID)
	return nil
}

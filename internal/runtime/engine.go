package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aretw0/menuflow/internal/logging"
	"github.com/aretw0/menuflow/internal/template"
	"github.com/aretw0/menuflow/internal/variables"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
	"github.com/aretw0/menuflow/pkg/session"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxTransitions bounds the number of successors followed in one step.
	DefaultMaxTransitions = 100
	// DefaultHTTPTimeout bounds one HTTPRequest node call.
	DefaultHTTPTimeout = 10 * time.Second
	// DefaultMaxResponseBytes caps how much of a response body is read.
	DefaultMaxResponseBytes = 1 << 20

	tracerName = "github.com/aretw0/menuflow/internal/runtime"
)

// Renderer evaluates templated flow text against a user's variables.
type Renderer interface {
	Render(ctx context.Context, text string, vars map[string]string) string
	RenderValue(ctx context.Context, v any, vars map[string]string) any
}

// Engine is the traversal state machine. It owns no per-user state: sessions
// and variables live in the store behind the session Manager.
type Engine struct {
	menu     atomic.Pointer[domain.Menu]
	sessions *session.Manager
	vars     *variables.Store

	renderer         Renderer
	client           *http.Client
	limiter          *rate.Limiter
	hooks            domain.LifecycleHooks
	logger           *slog.Logger
	tracer           trace.Tracer
	entryNodeID      string
	maxTransitions   int
	maxResponseBytes int64
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithEntryNode overrides the Menu entry node for new sessions.
func WithEntryNode(nodeID string) EngineOption {
	return func(e *Engine) {
		e.entryNodeID = nodeID
	}
}

// WithMaxTransitions sets the per-step transition guard.
func WithMaxTransitions(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxTransitions = n
		}
	}
}

// WithMaxResponseBytes caps the response body read by HTTPRequest nodes.
func WithMaxResponseBytes(n int64) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxResponseBytes = n
		}
	}
}

// WithHTTPClient sets the client used by HTTPRequest nodes.
func WithHTTPClient(client *http.Client) EngineOption {
	return func(e *Engine) {
		e.client = client
	}
}

// WithRateLimiter throttles outbound HTTPRequest calls across all users.
func WithRateLimiter(limiter *rate.Limiter) EngineOption {
	return func(e *Engine) {
		e.limiter = limiter
	}
}

// WithRenderer replaces the default expression renderer.
func WithRenderer(r Renderer) EngineOption {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithVariableStore shares a variable cache with other components.
func WithVariableStore(store *variables.Store) EngineOption {
	return func(e *Engine) {
		e.vars = store
	}
}

// WithTracerProvider sets the provider for step and node spans.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// NewEngine creates an engine serving menu. Successor references must resolve.
func NewEngine(menu *domain.Menu, sessions *session.Manager, opts ...EngineOption) (*Engine, error) {
	if sessions == nil {
		return nil, errors.New("engine requires a session manager")
	}
	e := &Engine{
		sessions:         sessions,
		logger:           logging.NewNop(),
		tracer:           otel.Tracer(tracerName),
		maxTransitions:   DefaultMaxTransitions,
		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.renderer == nil {
		e.renderer = template.New(template.WithLogger(e.logger))
	}
	if e.vars == nil {
		e.vars = variables.NewStore(sessions.Store(), variables.WithLogger(e.logger))
	}
	if e.client == nil {
		e.client = &http.Client{
			Timeout:   DefaultHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if err := e.Reload(menu); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload swaps the Menu. Steps already running keep the Menu they started with.
func (e *Engine) Reload(menu *domain.Menu) error {
	if menu == nil || len(menu.Nodes) == 0 {
		return errors.New("menu has no nodes")
	}
	if err := menu.ResolveReferences(); err != nil {
		return err
	}
	if entry := e.entry(menu); entry == "" {
		return &domain.ConfigurationError{Reason: "menu has no entry node", Err: domain.ErrUnknownNode}
	} else if _, ok := menu.Node(entry); !ok {
		return &domain.ConfigurationError{NodeID: entry, Reason: "entry node does not exist", Err: domain.ErrUnknownNode}
	}
	old := e.menu.Swap(menu)
	if old != nil {
		e.logger.Info("Menu reloaded", "menu_id", menu.ID, "nodes", len(menu.Nodes))
	}
	return nil
}

// Menu returns the Menu currently served.
func (e *Engine) Menu() *domain.Menu {
	return e.menu.Load()
}

// Variables returns the engine's variable store.
func (e *Engine) Variables() *variables.Store {
	return e.vars
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

func (e *Engine) entry(menu *domain.Menu) string {
	if e.entryNodeID != "" {
		return e.entryNodeID
	}
	return menu.EntryNodeID()
}

// Process runs one traversal step for the sender of in. Rendered texts are
// delivered through out as they are produced. On error the user's position
// and variables are left as they were before the step.
func (e *Engine) Process(ctx context.Context, in domain.Inbound, out ports.Messenger) (*domain.Result, error) {
	if in.UserID == "" {
		return nil, errors.New("inbound message has no user id")
	}
	menu := e.menu.Load()
	stepID := uuid.NewString()
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "menuflow.step", trace.WithAttributes(
		attribute.String("menuflow.user_id", in.UserID),
		attribute.String("menuflow.step_id", stepID),
		attribute.String("menuflow.menu_id", menu.ID),
	))
	defer span.End()

	var res *domain.Result
	err := e.sessions.WithLock(ctx, in.UserID, func(ctx context.Context) error {
		var err error
		res, err = e.step(ctx, menu, stepID, in, out)
		return err
	})
	if res == nil {
		res = &domain.Result{UserID: in.UserID}
	}

	e.emitStepComplete(ctx, stepID, res, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.ErrorContext(ctx, "Step failed",
			"user_id", in.UserID,
			"node_id", res.NodeID,
			"step_id", stepID,
			"error", err,
		)
		return res, err
	}
	span.SetAttributes(
		attribute.String("menuflow.node_id", res.NodeID),
		attribute.Int("menuflow.transitions", res.Transitions),
	)
	return res, nil
}

func (e *Engine) step(ctx context.Context, menu *domain.Menu, stepID string, in domain.Inbound, out ports.Messenger) (*domain.Result, error) {
	current, _, err := e.sessions.LoadOrNew(ctx, in.UserID, e.entry(menu))
	if err != nil {
		return nil, &domain.PersistenceError{UserID: in.UserID, Err: err}
	}
	tx, err := e.vars.Begin(ctx, in.UserID, variables.VersionOf(current))
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if in.RoomID != "" {
		next.RoomID = in.RoomID
	}
	st := &step{
		engine:  e,
		menu:    menu,
		id:      stepID,
		session: next,
		tx:      tx,
		out:     out,
	}

	if err := st.run(ctx, in.Body); err != nil {
		// Discard the transaction and the session copy.
		return &domain.Result{
			UserID:      in.UserID,
			NodeID:      current.CurrentNodeID,
			Status:      current.Status,
			Sent:        st.sent,
			Transitions: st.transitions,
		}, err
	}

	next.Revision++
	next.UpdatedAt = time.Now().UTC()
	changes := tx.Changes()
	if err := e.commit(ctx, next, changes); err != nil {
		return &domain.Result{
			UserID:      in.UserID,
			NodeID:      current.CurrentNodeID,
			Status:      current.Status,
			Sent:        st.sent,
			Transitions: st.transitions,
		}, &domain.PersistenceError{UserID: in.UserID, Err: err}
	}
	e.vars.Apply(in.UserID, variables.VersionOf(next), changes)

	return &domain.Result{
		UserID:      in.UserID,
		NodeID:      next.CurrentNodeID,
		Status:      next.Status,
		Sent:        st.sent,
		Transitions: st.transitions,
	}, nil
}

// commit persists the step once: atomically when the store supports it.
func (e *Engine) commit(ctx context.Context, s *domain.Session, changes map[string]string) error {
	store := e.sessions.Store()
	if c, ok := store.(ports.Committer); ok {
		return c.Commit(ctx, s, changes)
	}
	for name, value := range changes {
		if err := store.SaveVariable(ctx, s.UserID, name, value); err != nil {
			return fmt.Errorf("save variable %s: %w", name, err)
		}
	}
	if err := store.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

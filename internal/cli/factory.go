// Package cli wires configuration into a running Bot for the menuflow
// commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/menuflow"
	"github.com/aretw0/menuflow/internal/config"
	"github.com/aretw0/menuflow/internal/metrics"
	"github.com/aretw0/menuflow/internal/runtime"
	"github.com/aretw0/menuflow/internal/telemetry"
	"github.com/aretw0/menuflow/pkg/adapters/file"
	"github.com/aretw0/menuflow/pkg/adapters/memory"
	"github.com/aretw0/menuflow/pkg/adapters/redis"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/persistence/middleware"
	"github.com/aretw0/menuflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// App is a fully wired Bot with the resources it owns.
type App struct {
	Bot      *menuflow.Bot
	Loader   *file.Loader
	Registry *prometheus.Registry
	Tracing  *telemetry.Provider

	closers []func(context.Context) error
}

// Close releases the store connection and flushes traces.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// Backend is the session store selected by configuration.
type Backend struct {
	Store  ports.SessionStore
	Locker ports.DistributedLocker
	Close  func(context.Context) error
}

// OpenStore opens the configured store, wrapped with encryption when a key
// is set. The redis driver also provides a distributed locker.
func OpenStore(ctx context.Context, cfg *config.Config) (*Backend, error) {
	b := &Backend{Close: func(context.Context) error { return nil }}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		b.Store = memory.NewStore()
	case config.DriverFile:
		b.Store = file.NewStore(cfg.Store.Path)
	case config.DriverRedis:
		rc := cfg.Store.Redis
		store, err := redis.New(ctx, rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		if err != nil {
			return nil, err
		}
		b.Store = store
		b.Locker = redis.NewLocker(store.Client(), rc.Prefix)
		b.Close = func(context.Context) error { return store.Client().Close() }
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	active, fallback, err := cfg.Store.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		b.Store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})(b.Store)
	}
	return b, nil
}

// Build wires the Bot described by cfg.
func Build(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*App, error) {
	app := &App{
		Loader:   file.NewLoader(cfg.Flow.Path),
		Registry: prometheus.NewRegistry(),
	}

	tp, err := telemetry.Init(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	app.Tracing = tp
	app.closers = append(app.closers, tp.Shutdown)

	backend, err := OpenStore(ctx, cfg)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	app.closers = append(app.closers, backend.Close)

	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(app.Registry)

	botOpts := []menuflow.Option{
		menuflow.WithStore(backend.Store),
		menuflow.WithLogger(logger),
		menuflow.WithLifecycleHooks(domain.ComposeHooks(DebugHooks(logger), m.Hooks())),
		menuflow.WithSelfID(cfg.Bot.UserID),
		menuflow.WithIgnoredUsers(cfg.Bot.UsersIgnore...),
		menuflow.WithMaxInputBytes(cfg.Bot.MaxInputBytes),
		menuflow.WithEntryNode(cfg.Flow.Entry),
		menuflow.WithEngineOptions(EngineOptions(cfg, tp)...),
	}
	if backend.Locker != nil {
		botOpts = append(botOpts, menuflow.WithLocker(backend.Locker, cfg.Store.Redis.LockTTL))
	}

	app.Bot, err = menuflow.New(ctx, app.Loader, botOpts...)
	if err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

// EngineOptions maps the engine section of cfg to runtime options.
func EngineOptions(cfg *config.Config, tp *telemetry.Provider) []runtime.EngineOption {
	opts := []runtime.EngineOption{
		runtime.WithMaxTransitions(cfg.Engine.MaxTransitions),
		runtime.WithMaxResponseBytes(cfg.Engine.MaxResponseBytes),
		runtime.WithHTTPClient(&http.Client{
			Timeout:   cfg.Engine.HTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}
	if cfg.Engine.RateLimit > 0 {
		burst := max(cfg.Engine.RateBurst, 1)
		opts = append(opts, runtime.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Engine.RateLimit), burst)))
	}
	if tp != nil {
		opts = append(opts, runtime.WithTracerProvider(tp.TracerProvider()))
	}
	return opts
}

// DebugHooks logs the traversal at debug level.
func DebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "Enter Node", "user_id", e.UserID, "node_id", e.NodeID, "type", e.NodeType)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "Leave Node", "user_id", e.UserID, "node_id", e.NodeID)
		},
		OnHTTPRequest: func(ctx context.Context, e *domain.HTTPEvent) {
			logger.DebugContext(ctx, "HTTP Request", "node_id", e.NodeID, "method", e.Method, "url", e.URL)
		},
		OnHTTPResponse: func(ctx context.Context, e *domain.HTTPEvent) {
			logger.DebugContext(ctx, "HTTP Response", "node_id", e.NodeID, "status", e.StatusCode, "duration", e.Duration, "error", e.Err)
		},
		OnStepComplete: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "Step Complete",
				"user_id", e.UserID,
				"step_id", e.StepID,
				"node_id", e.NodeID,
				"status", e.Status,
				"transitions", e.Transitions,
				"duration", e.Duration,
			)
		},
	}
}

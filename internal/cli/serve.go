package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/aretw0/menuflow/internal/config"
	httpAdapter "github.com/aretw0/menuflow/pkg/adapters/http"
	"golang.org/x/sync/errgroup"
)

// Serve runs the webhook server until ctx is done, reloading the flow file
// on change when configured. If ln is nil it listens on cfg.Server.Addr.
func Serve(ctx context.Context, cfg *config.Config, app *App, ln net.Listener, version string, logger *slog.Logger) error {
	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(logger),
		httpAdapter.WithVersion(version),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, httpAdapter.WithMetrics(app.Registry))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpAdapter.NewHandler(app.Bot, opts...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if ln != nil {
			logger.Info("Starting menuflow server", "addr", ln.Addr().String(), "flow", cfg.Flow.Path)
			err = srv.Serve(ln)
		} else {
			logger.Info("Starting menuflow server", "addr", srv.Addr, "flow", cfg.Flow.Path)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", cfg.Server.ShutdownTimeout, err)
		}
		logger.Info("menuflow server stopped gracefully")
		return nil
	})

	if cfg.Flow.Watch {
		g.Go(func() error {
			// Hot reload is best effort; the server keeps running without it.
			if err := app.Bot.Watch(gctx); err != nil {
				logger.Warn("Flow watch disabled", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

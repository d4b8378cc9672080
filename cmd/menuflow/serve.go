package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/menuflow/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Starts the menuflow webhook server. Chat messages are posted as JSON to
/messages and the rendered replies are returned and streamed on /events.
The flow file is reloaded when it changes (flow.watch).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.Build(ctx, cfg, version, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Shutdown incomplete", "error", err)
			}
		}()

		return cli.Serve(ctx, cfg, app, nil, version, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
}

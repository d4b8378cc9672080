package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/menuflow/internal/cli"
	"github.com/aretw0/menuflow/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the flow in the terminal",
	Long:  `Runs the flow interactively: every line typed is a chat message from --user. Type /quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetString("user")
		plain, _ := cmd.Flags().GetBool("plain")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.Build(ctx, cfg, version, logger)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close(context.WithoutCancel(ctx)) }()

		out := cmd.OutOrStdout()
		console := tui.NewConsole(out)
		if tui.IsTerminal(os.Stdout) && !plain {
			tui.PrintBanner(out)
			if render, err := tui.NewRenderer(tui.Width(os.Stdout, 80)); err == nil {
				console.Render = render
			}
		} else {
			console.Prompt = ""
		}

		err = console.Run(ctx, cmd.InOrStdin(), app.Bot, userID)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("user", "u", "@local:console", "User id the messages are sent as")
	chatCmd.Flags().Bool("plain", false, "Disable markdown rendering and the banner")
}

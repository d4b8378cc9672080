package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/menuflow/internal/cli"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent sessions",
	Long:  `List, inspect and reset the sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer backend.Close(cmd.Context())

		users, err := backend.Store.ListSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(users) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Sessions:")
		for _, u := range users {
			fmt.Fprintln(out, "- "+u)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show the position and variables of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		backend, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer backend.Close(cmd.Context())

		s, err := backend.Store.LoadSession(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to load session '%s': %w", userID, err)
		}
		vars, err := backend.Store.LoadVariables(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to load variables of '%s': %w", userID, err)
		}

		data, err := json.MarshalIndent(struct {
			*domain.Session
			Variables map[string]string `json:"variables"`
		}{s, vars}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:     "reset <user-id>...",
	Aliases: []string{"rm"},
	Short:   "Forget one or more users; their next message starts the flow over",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer backend.Close(cmd.Context())

		var errs []error
		for _, userID := range args {
			if err := backend.Store.DeleteSession(cmd.Context(), userID); err != nil {
				errs = append(errs, fmt.Errorf("failed to reset '%s': %w", userID, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset session '%s'\n", userID)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionShowCmd.Flags().Bool("reveal", false, "Show variables matching store.pii_patterns")
}

func openBackend(cmd *cobra.Command) (*cli.Backend, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	reveal := false
	if f := cmd.Flags().Lookup("reveal"); f != nil {
		reveal, _ = cmd.Flags().GetBool("reveal")
	}
	return cli.OpenInspector(cmd.Context(), cfg, reveal)
}

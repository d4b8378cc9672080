package main

import (
	"fmt"

	"github.com/aretw0/menuflow/internal/cli"
	"github.com/aretw0/menuflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [flow]",
	Short: "Export the flow as a Mermaid diagram",
	Long:  `Prints a Mermaid flowchart of the flow. With --user, the node the user is at is highlighted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := flowPath(cmd, args)
		if err != nil {
			return err
		}
		menu, err := parseFlow(path)
		if err != nil {
			return err
		}

		overlay := &graph.GraphOverlay{Unreachable: menu.Unreachable()}
		if userID, _ := cmd.Flags().GetString("user"); userID != "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			backend, err := cli.OpenInspector(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer backend.Close(cmd.Context())

			s, err := backend.Store.LoadSession(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("failed to load session of %s: %w", userID, err)
			}
			overlay.CurrentNode = s.CurrentNodeID
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(menu, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("user", "", "Highlight the current node of this user")
}
